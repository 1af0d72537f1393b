package parsley

// Part is one unit of a multimodal message: the prompt text, a rasterized
// page image, or a whole original file attached natively.
type Part struct {
	Type     string
	Text     string
	Data     []byte // raw bytes for image and file parts
	MimeType string
	Filename string // set for native file parts
}

// NewTextPart creates a new text part
func NewTextPart(text string) *Part {
	return &Part{Type: "text", Text: text}
}

// NewImagePart creates a new image part with data and mime type
func NewImagePart(data []byte, mimeType string) *Part {
	return &Part{Type: "image", Data: data, MimeType: mimeType}
}

// NewFilePart creates a native file part carrying the full original document
func NewFilePart(data []byte, mimeType, filename string) *Part {
	return &Part{Type: "file", Data: data, MimeType: mimeType, Filename: filename}
}
