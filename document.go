package parsley

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxFileSize caps uploads for user-provided credentials.
	MaxFileSize = 10 << 20
	// MaxDemoFileSize caps uploads for the demo provider.
	MaxDemoFileSize = 2 << 20

	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
)

var allowedMimeTypes = map[string]bool{
	MimePDF:      true,
	MimePNG:      true,
	MimeJPEG:     true,
	"image/jpg":  true,
	"image/webp": true,
}

// PageRange selects a 1-based inclusive page window. End == 0 means "to the
// last page".
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end,omitempty"`
}

// Normalize clamps the range into something a collaborator can act on.
func (r PageRange) Normalize() PageRange {
	if r.Start < 1 {
		r.Start = 1
	}
	if r.End != 0 && r.End < r.Start {
		r.End = r.Start
	}
	return r
}

// Decryptor is the narrow contract for the PDF decryption collaborator: it
// re-encodes an (optionally page-windowed) PDF as a base64 data URL.
// Failures (wrong password, corrupt file, unsupported encryption) surface
// as document processing errors.
type Decryptor interface {
	Decrypt(ctx context.Context, data []byte, password string, pages PageRange) (string, error)
}

// Rasterizer renders the requested pages of a document to base64 PNG data
// URLs, one entry per page in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, pages PageRange) ([]string, error)
}

// EncodeDataURL wraps raw bytes into a base64 data URL.
func EncodeDataURL(data []byte, mimeType string) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a data URL back into raw bytes and its declared mime
// type. Bare base64 without a data: prefix is accepted with an empty mime
// type, matching what upstream page renderers occasionally emit.
func DecodeDataURL(s string) (data []byte, mimeType string, err error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("data url: missing payload")
		}
		meta := s[len("data:"):comma]
		mimeType = strings.TrimSuffix(meta, ";base64")
		payload = s[comma+1:]
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("data url: decode base64: %w", err)
	}
	return data, mimeType, nil
}

// DetectMimeType sniffs the content and falls back to the filename
// extension when sniffing is inconclusive.
func DetectMimeType(data []byte, filename string) string {
	if len(data) > 0 {
		if mtype := mimetype.Detect(data); mtype.String() != "application/octet-stream" {
			return mtype.String()
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MimePDF
	case ".png":
		return MimePNG
	case ".jpg", ".jpeg":
		return MimeJPEG
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// ValidateUpload enforces the size cap and the allowed document types
// before any document reaches the pipeline.
func ValidateUpload(size int64, mimeType string, demo bool) error {
	limit := int64(MaxFileSize)
	if demo {
		limit = MaxDemoFileSize
	}
	if size > limit {
		return NewError(KindValidation, "file size %.2fMB exceeds the maximum allowed size of %dMB",
			float64(size)/(1<<20), limit>>20)
	}
	if !allowedMimeTypes[mimeType] {
		return NewError(KindDocument, "unsupported file type: %s (allowed: PDF, PNG, JPEG, WebP)", mimeType)
	}
	return nil
}
