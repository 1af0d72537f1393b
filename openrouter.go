package parsley

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openRouterReferer = "https://parsley.wastu.net"
	openRouterTitle   = "Parsley - Document Parser"
)

// OpenRouterInvoker talks to OpenRouter's OpenAI-compatible chat completions
// API. The validation contract travels as a json_schema response format, so
// capable models constrain their own decoding.
type OpenRouterInvoker struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// OpenRouterOption customizes an OpenRouterInvoker.
type OpenRouterOption func(*OpenRouterInvoker)

// WithBaseURL points the invoker at a different endpoint, used by tests.
func WithBaseURL(u string) OpenRouterOption {
	return func(o *OpenRouterInvoker) { o.baseURL = u }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) OpenRouterOption {
	return func(o *OpenRouterInvoker) { o.client = c }
}

// NewOpenRouterInvoker creates an OpenRouter-backed invoker.
func NewOpenRouterInvoker(apiKey string, log *slog.Logger, opts ...OpenRouterOption) *OpenRouterInvoker {
	if log == nil {
		log = slog.Default()
	}
	o := &OpenRouterInvoker{
		apiKey:  apiKey,
		baseURL: openRouterBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
		log:     log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type orChatRequest struct {
	Model          string        `json:"model"`
	Messages       []orMessage   `json:"messages"`
	ResponseFormat *orRespFormat `json:"response_format,omitempty"`
}

type orMessage struct {
	Role    string      `json:"role"`
	Content []orContent `json:"content"`
}

type orContent struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL *orImageURL `json:"image_url,omitempty"`
	File     *orFile     `json:"file,omitempty"`
}

type orImageURL struct {
	URL string `json:"url"`
}

type orFile struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type orRespFormat struct {
	Type       string           `json:"type"`
	JSONSchema orSchemaEnvelope `json:"json_schema"`
}

type orSchemaEnvelope struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type orChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate implements Invoker.
func (o *OpenRouterInvoker) Generate(ctx context.Context, model string, content []*Part, contract *Validator) ([]byte, error) {
	msg := orMessage{Role: "user"}
	for _, part := range content {
		switch part.Type {
		case "text":
			msg.Content = append(msg.Content, orContent{Type: "text", Text: part.Text})
		case "image":
			msg.Content = append(msg.Content, orContent{
				Type:     "image_url",
				ImageURL: &orImageURL{URL: EncodeDataURL(part.Data, part.MimeType)},
			})
		case "file":
			msg.Content = append(msg.Content, orContent{
				Type: "file",
				File: &orFile{Filename: part.Filename, FileData: EncodeDataURL(part.Data, part.MimeType)},
			})
		}
	}
	req := orChatRequest{Model: model, Messages: []orMessage{msg}}
	if contract != nil {
		req.ResponseFormat = &orRespFormat{
			Type:       "json_schema",
			JSONSchema: orSchemaEnvelope{Name: "extraction", Strict: true, Schema: contract.Document()},
		}
	}

	headers := map[string]string{
		"Authorization": "Bearer " + o.apiKey,
		"HTTP-Referer":  openRouterReferer,
		"X-Title":       openRouterTitle,
	}
	raw, status, err := sendJSON(ctx, o.client, o.baseURL+"/chat/completions", req, headers, o.log)
	if err != nil {
		if status == http.StatusTooManyRequests {
			return nil, NewError(KindRateLimit, "openrouter: request was rate limited, try again later")
		}
		var parsed orChatResponse
		if jsonErr := json.Unmarshal(raw, &parsed); jsonErr == nil && parsed.Error != nil {
			return nil, fmt.Errorf("openrouter: %s (status %d)", parsed.Error.Message, status)
		}
		return nil, fmt.Errorf("openrouter: %w", err)
	}

	var parsed orChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("openrouter: decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openrouter: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("openrouter: no choices in response")
	}
	text := parsed.Choices[0].Message.Content
	if text == "" {
		return nil, fmt.Errorf("openrouter: empty completion")
	}
	return []byte(text), nil
}

// sendJSON posts a JSON body and returns the raw response. It does not
// assume a provider; callers decide the URL and headers.
func sendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}

	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("provider.http.request", "req_id", reqID, "url", url, "content_length", len(bs))

	resp, err := client.Do(req)
	if err != nil {
		logger.Warn("provider.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	logger.Debug("provider.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}
