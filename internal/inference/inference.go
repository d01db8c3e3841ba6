package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"go.uber.org/zap"
)

// maxErrorBody caps how much of a failed response body is kept in errors
const maxErrorBody = 512

// ErrNoAudio is returned by DecodeAudio when the response carried no audio
var ErrNoAudio = errors.New("response did not contain audio data")

// Upload is one recorded utterance plus its conversation context
type Upload struct {
	Audio        []byte
	Filename     string // e.g. recording.wav
	ContentType  string
	SessionID    string
	QuestionText string
}

// Response is the JSON body returned by the inference endpoint
type Response struct {
	Audio string `json:"Audio"`
}

// HasAudio reports whether the response carries an encoded audio field
func (r *Response) HasAudio() bool {
	return r != nil && r.Audio != ""
}

// DecodeAudio decodes the base64 audio field
func (r *Response) DecodeAudio() ([]byte, error) {
	if !r.HasAudio() {
		return nil, ErrNoAudio
	}
	data, err := base64.StdEncoding.DecodeString(r.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	return data, nil
}

// StatusError is returned when the endpoint answers outside the 2xx range
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference request failed with status %d", e.StatusCode)
}

// Service sends an utterance to the remote inference endpoint
type Service interface {
	Infer(ctx context.Context, upload Upload) (*Response, error)
}

// Config holds client configuration
type Config struct {
	Endpoint string
	Headers  map[string]string // added to every request, e.g. a proxy bypass header
	Timeout  time.Duration     // transport-level timeout, 0 = none
}

// Client implements Service over HTTP multipart
type Client struct {
	endpoint   string
	headers    map[string]string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Service = (*Client)(nil)

// NewClient creates an inference client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("inference endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	headers := make(map[string]string, len(config.Headers))
	for k, v := range config.Headers {
		headers[k] = v
	}

	return &Client{
		endpoint: config.Endpoint,
		headers:  headers,
		// No cookie jar: requests never carry credentials
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// Endpoint returns the URL requests are sent to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Infer posts the upload as multipart/form-data and decodes the JSON reply.
// A 2xx reply without an audio field is not an error; callers decide.
func (c *Client) Infer(ctx context.Context, upload Upload) (*Response, error) {
	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.logger.Info("Sending utterance",
		zap.String("sessionID", upload.SessionID),
		zap.Int("audioBytes", len(upload.Audio)))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("Inference endpoint returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(snippet)))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}

	c.logger.Info("Inference response received",
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("hasAudio", out.HasAudio()))

	return &out, nil
}

// encodeUpload builds the multipart body: file, session_id, question_text
func encodeUpload(upload Upload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := upload.Filename
	if filename == "" {
		filename = "recording.wav"
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(upload.Audio); err != nil {
		return nil, "", fmt.Errorf("failed to write audio: %w", err)
	}

	if err := w.WriteField("session_id", upload.SessionID); err != nil {
		return nil, "", fmt.Errorf("failed to write session_id: %w", err)
	}
	if err := w.WriteField("question_text", upload.QuestionText); err != nil {
		return nil, "", fmt.Errorf("failed to write question_text: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
