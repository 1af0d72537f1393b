package parsley

import "fmt"

// Provider identifies an AI backend.
type Provider string

const (
	ProviderGoogle     Provider = "google"
	ProviderOpenRouter Provider = "openrouter"
	// ProviderDemo is OpenRouter under a server-held key with a pinned model.
	ProviderDemo Provider = "demo"
)

// ProviderCapability drives payload strategy selection. The assembler
// branches on capability once instead of threading provider checks through
// every component.
type ProviderCapability struct {
	// SupportsNativeFile means the provider can consume a whole PDF as a
	// single file attachment instead of rasterized page images.
	SupportsNativeFile bool
}

// CapabilityOf returns the capability record for a provider. Unknown
// providers get the conservative no-native-file default.
func CapabilityOf(p Provider) ProviderCapability {
	switch p {
	case ProviderOpenRouter, ProviderDemo:
		return ProviderCapability{SupportsNativeFile: true}
	default:
		return ProviderCapability{}
	}
}

// Assemble builds the ordered content parts for one model call: a single
// text part holding the prompt, followed by the document.
//
// When the provider can consume native files, the document is a PDF, and a
// filename is known, the whole document travels as one file part. In every
// other case documentData is treated as pre-rasterized page images, one
// image part per entry in page order. The decision is made exactly once
// here; no fallback between the two modes is attempted.
func Assemble(prompt string, documentData []string, mimeType string, provider Provider, filename string) ([]*Part, error) {
	if len(documentData) == 0 {
		return nil, fmt.Errorf("assemble: %w", ErrEmptyDocument)
	}
	parts := []*Part{NewTextPart(prompt)}

	if CapabilityOf(provider).SupportsNativeFile && mimeType == MimePDF && filename != "" {
		data, _, err := DecodeDataURL(documentData[0])
		if err != nil {
			return nil, fmt.Errorf("assemble: file data: %w", err)
		}
		parts = append(parts, NewFilePart(data, mimeType, filename))
		return parts, nil
	}

	for i, entry := range documentData {
		data, entryMime, err := DecodeDataURL(entry)
		if err != nil {
			return nil, fmt.Errorf("assemble: page %d: %w", i+1, err)
		}
		if entryMime == "" {
			entryMime = mimeType
		}
		parts = append(parts, NewImagePart(data, entryMime))
	}
	return parts, nil
}
