package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"shuttle/internal/capture"
	"shuttle/internal/config"
)

const defaultRequestTimeout = 60 * time.Second

// Upload describes one delivery: the payload file and the capture fields
// that accompany it.
type Upload struct {
	MediaID  string
	Path     string
	Endpoint string
	Size     int64
	Metadata capture.Metadata
}

// Client posts capture payloads to their endpoint as streaming multipart
// requests.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	userAgent  string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithUserAgent overrides the User-Agent header sent with uploads.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if strings.TrimSpace(userAgent) != "" {
			c.userAgent = strings.TrimSpace(userAgent)
		}
	}
}

// NewClient constructs an upload client from configuration.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	timeout := defaultRequestTimeout
	if cfg.Uploader.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Uploader.RequestTimeout) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  cfg.Uploader.UserAgent,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	return client
}

// Upload streams the payload to its endpoint. Progress is reported as a
// non-decreasing fraction of payload bytes handed to the wire, with a final
// 1.0 sample once the server confirms the delivery. A payload missing from
// disk returns capture.ErrPayloadMissing; every other failure is reported
// as-is for the pipeline to retry.
func (c *Client) Upload(ctx context.Context, up Upload, progress func(float64)) error {
	if up.Endpoint == "" {
		return errors.New("upload: endpoint required")
	}
	if up.MediaID == "" {
		return errors.New("upload: media id required")
	}

	file, err := os.Open(up.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", capture.ErrPayloadMissing, up.Path)
		}
		return fmt.Errorf("upload: open payload: %w", err)
	}
	defer file.Close()

	token, err := c.cfg.ResolveAuthToken()
	if err != nil {
		return fmt.Errorf("upload: resolve auth token: %w", err)
	}

	reader := newProgressReader(file, up.Size, progress)
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, up, reader))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, up.Endpoint, pr)
	if err != nil {
		return fmt.Errorf("upload: new request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", up.MediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	reader.finish()
	return nil
}

// writeForm emits the multipart body: metadata fields first so the server
// can reject bad requests before the payload arrives, then the content part.
func writeForm(form *multipart.Writer, up Upload, payload io.Reader) error {
	meta := up.Metadata.Normalized()
	fields := [][2]string{
		{"media_id", up.MediaID},
		{"captured_at", meta.CapturedAt.Format(time.RFC3339)},
		{"orientation", string(meta.Orientation)},
		{"size", strconv.FormatInt(up.Size, 10)},
	}
	if meta.Location != nil {
		fields = append(fields,
			[2]string{"latitude", strconv.FormatFloat(meta.Location.Latitude, 'f', -1, 64)},
			[2]string{"longitude", strconv.FormatFloat(meta.Location.Longitude, 'f', -1, 64)},
		)
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return fmt.Errorf("write %s field: %w", field[0], err)
		}
	}

	part, err := form.CreateFormFile("content", up.MediaID)
	if err != nil {
		return fmt.Errorf("create content part: %w", err)
	}
	if _, err := io.Copy(part, payload); err != nil {
		return fmt.Errorf("stream payload: %w", err)
	}
	return form.Close()
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
