// Package transcription talks to a Whisper-compatible speech-to-text HTTP
// endpoint: one multipart upload of the normalized audio per file, with a
// fixed language hint, returning plain transcript text.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"traffic-insights-go/internal/config"
	"traffic-insights-go/internal/logger"
)

// ErrTranscription marks a failed transcription call. Fatal for the file,
// batch continues.
var ErrTranscription = errors.New("transcription failed")

type Client struct {
	endpoint    string
	language    string
	mock        bool
	retryWindow time.Duration
	httpClient  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		endpoint:    cfg.TranscribeURL,
		language:    cfg.Language,
		mock:        cfg.MockTranscribe,
		retryWindow: cfg.RetryWindow,
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio at path and returns the full transcript text,
// unfiltered. Use USE_MOCK_TRANSCRIBE=true for offline demo.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	if c.mock {
		// quick mock transcript
		return "MOCK TRANSCRIPT: Sedan prata, placa ABC1234, avançou o sinal vermelho na Avenida Central.", nil
	}
	if c.endpoint == "" {
		return "", fmt.Errorf("%w: TRANSCRIBE_URL not set", ErrTranscription)
	}
	log := logger.New().WithField("module", "transcription")

	var text string
	var lastErr error
	op := func() error {
		req, err := c.buildRequest(ctx, path)
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %s", string(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
			return backoff.Permanent(lastErr)
		}
		var parsed transcribeResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(body))
			return lastErr
		}
		text = parsed.Text
		lastErr = nil
		return nil
	}

	if err := backoff.Retry(op, c.policy(ctx)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, lastErr)
	}
	log.WithField("chars", len(text)).Info("transcript received")
	return text, nil
}

// policy yields a single attempt unless a retry window is configured.
func (c *Client) policy(ctx context.Context) backoff.BackOffContext {
	if c.retryWindow <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.retryWindow
	return backoff.WithContext(b, ctx)
}

func (c *Client) buildRequest(ctx context.Context, path string) (*http.Request, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	_ = w.WriteField("language", c.language)
	_ = w.WriteField("response_format", "json")
	if err := w.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}
