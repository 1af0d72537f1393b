package server

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/bgwastu/parsley"
)

// multipartMemory caps how much of an upload is buffered in memory before
// spilling to disk.
const multipartMemory = 4 << 20

// parseForm is the decoded multipart request shared by both parse
// endpoints.
type parseForm struct {
	config       parsley.ModelConfig
	documentData []string
	mimeType     string
	filename     string
	size         int64
	format       parsley.OutputFormat
	jsonType     parsley.JSONType
	schema       *parsley.SchemaDefinition
	customPrompt string
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	form, err := s.decodeParseForm(r, false)
	if err != nil {
		writeError(w, err)
		return
	}

	schema, err := s.resolveSchema(r.Context(), form)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := s.pipe.ParseDocument(r.Context(), parsley.ParseRequest{
		Config:       form.config,
		DocumentData: form.documentData,
		MimeType:     form.mimeType,
		Schema:       schema,
		CustomPrompt: form.customPrompt,
		Filename:     form.filename,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out.Data)
}

func (s *Server) handleDemoParse(w http.ResponseWriter, r *http.Request) {
	if s.cfg.DemoAPIKey() == "" {
		writeError(w, parsley.NewError(parsley.KindAPI, "demo provider is not configured"))
		return
	}

	form, err := s.decodeParseForm(r, true)
	if err != nil {
		writeError(w, err)
		return
	}
	if form.schema == nil {
		writeError(w, parsley.NewError(parsley.KindValidation, "schema is required for the demo provider"))
		return
	}

	out, err := s.pipe.ParseDocument(r.Context(), parsley.ParseRequest{
		Config:       form.config,
		DocumentData: form.documentData,
		MimeType:     form.mimeType,
		Schema:       *form.schema,
		CustomPrompt: form.customPrompt,
		Filename:     form.filename,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out.Data)
}

// resolveSchema uses the caller's schema when provided and otherwise asks
// the model to propose one for the document.
func (s *Server) resolveSchema(ctx context.Context, form *parseForm) (parsley.SchemaDefinition, error) {
	if form.schema != nil {
		return *form.schema, nil
	}
	return s.pipe.GenerateSchema(ctx, parsley.GenerateSchemaRequest{
		Config:       form.config,
		DocumentData: form.documentData,
		Format:       form.format,
		JSONType:     form.jsonType,
		Filename:     form.filename,
		MimeType:     form.mimeType,
	})
}

func (s *Server) decodeParseForm(r *http.Request, demo bool) (*parseForm, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, parsley.WrapError(parsley.KindValidation, err, "invalid multipart form: %v", err)
	}

	form := &parseForm{customPrompt: r.FormValue("customPrompt")}

	if demo {
		form.config = parsley.ModelConfig{Provider: parsley.ProviderDemo, APIKey: s.cfg.DemoAPIKey()}
	} else {
		cfg, err := providerConfig(r)
		if err != nil {
			return nil, err
		}
		form.config = cfg
	}

	format, jsonType, err := convertOutputFormat(r.FormValue("outputFormat"))
	if err != nil {
		return nil, err
	}
	form.format, form.jsonType = format, jsonType

	if raw := r.FormValue("schema"); raw != "" {
		var def parsley.SchemaDefinition
		if err := json.Unmarshal([]byte(raw), &def); err != nil {
			return nil, parsley.WrapError(parsley.KindValidation, err, "invalid JSON in schema field: %v", err)
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		form.schema = &def
	}

	if err := s.readDocument(r, form, demo); err != nil {
		return nil, err
	}
	return form, nil
}

// providerConfig reads the provider-specific credential fields. The demo
// provider is deliberately rejected here: its server-held key is only
// reachable through the demo endpoint.
func providerConfig(r *http.Request) (parsley.ModelConfig, error) {
	switch provider := r.FormValue("provider"); provider {
	case "google":
		apiKey, model := r.FormValue("googleApiKey"), r.FormValue("googleModel")
		if apiKey == "" {
			return parsley.ModelConfig{}, parsley.NewError(parsley.KindValidation, "googleApiKey is required for the Google provider")
		}
		if model == "" {
			return parsley.ModelConfig{}, parsley.NewError(parsley.KindValidation, "googleModel is required for the Google provider")
		}
		return parsley.ModelConfig{Provider: parsley.ProviderGoogle, APIKey: apiKey, ModelID: model}, nil
	case "openrouter":
		apiKey, model := r.FormValue("openrouterApiKey"), r.FormValue("openrouterModel")
		if apiKey == "" {
			return parsley.ModelConfig{}, parsley.NewError(parsley.KindValidation, "openrouterApiKey is required for the OpenRouter provider")
		}
		if model == "" {
			return parsley.ModelConfig{}, parsley.NewError(parsley.KindValidation, "openrouterModel is required for the OpenRouter provider")
		}
		return parsley.ModelConfig{Provider: parsley.ProviderOpenRouter, APIKey: apiKey, ModelID: model}, nil
	case "demo":
		return parsley.ModelConfig{}, parsley.NewError(parsley.KindValidation,
			"the demo provider is not available here; use 'google' or 'openrouter' with your own API key")
	default:
		return parsley.ModelConfig{}, parsley.NewError(parsley.KindValidation, "invalid provider %q, must be 'google' or 'openrouter'", provider)
	}
}

// readDocument loads the uploaded file, validates it, and encodes it as the
// pipeline's data URL form. Password-protected PDFs are decrypted first, and
// PDFs bound for a provider without native file support are rasterized into
// page images when a rasterizer is configured.
func (s *Server) readDocument(r *http.Request, form *parseForm, demo bool) error {
	file, header, err := r.FormFile("file")
	if err != nil {
		return parsley.WrapError(parsley.KindValidation, err, "file is required: %v", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return parsley.WrapError(parsley.KindDocument, err, "read upload: %v", err)
	}

	form.filename = headerFilename(header)
	form.mimeType = parsley.DetectMimeType(data, form.filename)
	form.size = int64(len(data))

	if err := parsley.ValidateUpload(form.size, form.mimeType, demo); err != nil {
		return err
	}

	if form.mimeType == parsley.MimePDF && r.FormValue("pdfPassword") != "" {
		if s.decrypt == nil {
			return parsley.NewError(parsley.KindDocument, "password-protected PDFs are not supported by this server")
		}
		decrypted, err := s.decrypt.Decrypt(r.Context(), data, r.FormValue("pdfPassword"), pageRangeFrom(r))
		if err != nil {
			return parsley.WrapError(parsley.KindDocument, err, "failed to decrypt PDF: %v", err)
		}
		plain, _, err := parsley.DecodeDataURL(decrypted)
		if err != nil {
			return parsley.WrapError(parsley.KindDocument, err, "decrypted document: %v", err)
		}
		data = plain
	}

	if form.mimeType == parsley.MimePDF && s.raster != nil &&
		!parsley.CapabilityOf(form.config.Provider).SupportsNativeFile {
		pages, err := s.raster.Rasterize(r.Context(), data, pageRangeFrom(r))
		if err != nil {
			return parsley.WrapError(parsley.KindDocument, err, "failed to rasterize PDF: %v", err)
		}
		if len(pages) == 0 {
			return parsley.NewError(parsley.KindDocument, "rasterized PDF produced no pages")
		}
		form.documentData = pages
		return nil
	}

	form.documentData = []string{parsley.EncodeDataURL(data, form.mimeType)}
	return nil
}

func headerFilename(header *multipart.FileHeader) string {
	if header != nil && header.Filename != "" {
		return header.Filename
	}
	return "document"
}

func pageRangeFrom(r *http.Request) parsley.PageRange {
	pr := parsley.PageRange{Start: 1}
	if v, err := strconv.Atoi(r.FormValue("pageRangeStart")); err == nil {
		pr.Start = v
	}
	if v, err := strconv.Atoi(r.FormValue("pageRangeEnd")); err == nil {
		pr.End = v
	}
	return pr.Normalize()
}

func convertOutputFormat(apiFormat string) (parsley.OutputFormat, parsley.JSONType, error) {
	switch apiFormat {
	case "json-object":
		return parsley.FormatJSON, parsley.JSONObject, nil
	case "json-array":
		return parsley.FormatJSON, parsley.JSONArray, nil
	case "csv":
		return parsley.FormatCSV, "", nil
	default:
		return "", "", parsley.NewError(parsley.KindValidation,
			"invalid outputFormat %q, must be 'json-object', 'json-array' or 'csv'", apiFormat)
	}
}
