package parsley

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityOf(t *testing.T) {
	assert.False(t, CapabilityOf(ProviderGoogle).SupportsNativeFile)
	assert.True(t, CapabilityOf(ProviderOpenRouter).SupportsNativeFile)
	assert.True(t, CapabilityOf(ProviderDemo).SupportsNativeFile)
	assert.False(t, CapabilityOf("something-else").SupportsNativeFile)
}

func TestAssembleNativeFile(t *testing.T) {
	doc := EncodeDataURL([]byte("%PDF-1.4 fake"), MimePDF)

	parts, err := Assemble("extract this", []string{doc}, MimePDF, ProviderOpenRouter, "invoice.pdf")
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "extract this", parts[0].Text)
	assert.Equal(t, "file", parts[1].Type)
	assert.Equal(t, "invoice.pdf", parts[1].Filename)
	assert.Equal(t, MimePDF, parts[1].MimeType)
}

func TestAssembleRasterizedImages(t *testing.T) {
	pages := []string{
		EncodeDataURL([]byte("page one"), MimePNG),
		EncodeDataURL([]byte("page two"), MimePNG),
		EncodeDataURL([]byte("page three"), MimePNG),
	}

	parts, err := Assemble("extract this", pages, MimePDF, ProviderGoogle, "invoice.pdf")
	require.NoError(t, err)
	require.Len(t, parts, 4, "one text part plus one image part per page")

	assert.Equal(t, "text", parts[0].Type)
	for i, want := range []string{"page one", "page two", "page three"} {
		part := parts[i+1]
		assert.Equal(t, "image", part.Type)
		assert.Equal(t, []byte(want), part.Data, "page order is preserved")
	}
}

func TestAssembleNoNativeFileWithoutFilename(t *testing.T) {
	doc := EncodeDataURL([]byte("page"), MimePNG)

	parts, err := Assemble("extract", []string{doc}, MimePNG, ProviderOpenRouter, "photo.png")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "image", parts[1].Type, "non-PDF documents always travel as images")

	parts, err = Assemble("extract", []string{EncodeDataURL([]byte("x"), MimePDF)}, MimePDF, ProviderOpenRouter, "")
	require.NoError(t, err)
	assert.Equal(t, "image", parts[1].Type, "a missing filename disables the native path")
}

func TestAssembleEmptyDocument(t *testing.T) {
	_, err := Assemble("extract", nil, MimePDF, ProviderGoogle, "x.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}
