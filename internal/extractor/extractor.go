// Package extractor turns a raw transcript into a StructuredRecord by
// prompting an OpenAI-compatible chat-completions gateway and parsing the
// JSON it answers with.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"traffic-insights-go/internal/config"
	"traffic-insights-go/internal/logger"
	"traffic-insights-go/internal/types"
)

// ErrParse marks a structurally invalid model response. The transcript was
// fine; the answer just was not JSON. Reported distinctly so the operator
// knows to inspect the raw transcript.
var ErrParse = errors.New("extraction response is not valid JSON")

// promptTemplate embeds the transcript verbatim. The warning about phonetic
// transcription mistakes matters: without it the model takes mangled words
// like "Esse UV" at face value instead of reading them as "SUV".
const promptTemplate = `Extract the following information from this text:
Text: "%s"

Beware that in this transcription there might be speech understanding errors like "Esse UV" actually meant to be "SUV" or "fume" (window tint) being interpreted as "fumei", etc...
Do not add information that wasn't said in the transcription; if any field has no mention in the transcription, leave it blank.
Format the result in this JSON format, it MUST be a valid JSON:
    "car_type": SUV | Pickup | Sedan | Hatch | Truck | Bus | Motorcycle | Undefined | Other
    "car_model": str
    "car_color": str
    "infraction_description": str
    "license_plate": str
    "location": str
    "driver_info": male | female | undefined
    "infraction_severity": low | med | high

Return ONLY the JSON object. No commentary, no markdown fences.`

// BuildPrompt renders the extraction prompt for one transcript.
func BuildPrompt(transcript string) string {
	return fmt.Sprintf(promptTemplate, transcript)
}

type Client struct {
	gatewayURL  string
	apiKey      string
	model       string
	mock        bool
	retryWindow time.Duration
	httpClient  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		gatewayURL:  cfg.LLMGatewayURL,
		apiKey:      cfg.LLMAPIKey,
		model:       cfg.LLMModel,
		mock:        cfg.MockLLM,
		retryWindow: cfg.RetryWindow,
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// Extract prompts the gateway with the transcript and parses the response.
// transcription and filename are injected into the parsed record afterwards,
// overriding anything the model put there. Use USE_MOCK_LLM=true for offline
// demo.
func (c *Client) Extract(ctx context.Context, transcript, filename string) (types.StructuredRecord, error) {
	log := logger.New().WithField("module", "extractor")

	if c.mock {
		log.Info("mock LLM mode ON - returning deterministic record")
		rec := types.StructuredRecord{
			CarType:               types.CarTypeSedan,
			CarColor:              "prata",
			InfractionDescription: "avançou o sinal vermelho",
			LicensePlate:          "ABC1234",
			Location:              "Avenida Central",
			DriverInfo:            types.DriverUndefined,
			InfractionSeverity:    types.SeverityMed,
		}
		rec.Transcription = transcript
		rec.Filename = filename
		return rec, nil
	}

	if c.gatewayURL == "" || c.apiKey == "" {
		return types.StructuredRecord{}, fmt.Errorf("llm gateway not configured")
	}

	reqBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": BuildPrompt(transcript)},
		},
		"temperature": 0.0,
	}
	data, _ := json.Marshal(reqBody)

	var rec types.StructuredRecord
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", c.gatewayURL, bytes.NewReader(data))
		if err != nil {
			lastErr = err
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		log.WithField("http_status", resp.StatusCode).Debug("llm raw:\n" + string(body))

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("llm server error: %s", string(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			// permanent: don't retry on client errors
			lastErr = fmt.Errorf("llm status %d: %s", resp.StatusCode, string(body))
			return backoff.Permanent(lastErr)
		}

		content := contentFromChoices(body)
		if content == "" {
			content = string(body)
		}
		raw := extractJSON(content)
		if raw == "" {
			lastErr = fmt.Errorf("%w: no JSON object in response", ErrParse)
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			// the model answered, just not with valid JSON; retrying the
			// same transcript is not part of this design
			lastErr = fmt.Errorf("%w: %v", ErrParse, err)
			return backoff.Permanent(lastErr)
		}
		lastErr = nil
		return nil
	}

	if err := backoff.Retry(op, c.policy(ctx)); err != nil {
		return types.StructuredRecord{}, fmt.Errorf("llm extract failed: %w", lastErr)
	}

	rec.Transcription = transcript
	rec.Filename = filename
	return rec, nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOffContext {
	if c.retryWindow <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.retryWindow
	return backoff.WithContext(b, ctx)
}

// contentFromChoices reads openai-style choices[0].message.content, or ""
func contentFromChoices(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	c0, _ := choices[0].(map[string]any)
	if c0 == nil {
		return ""
	}
	msg, _ := c0["message"].(map[string]any)
	if msg == nil {
		return ""
	}
	content, _ := msg["content"].(string)
	return content
}

// extractJSON finds the first balanced JSON object in a string, stripping the
// markdown fences LLMs like to wrap answers in.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, fence := range []string{"```json", "```", "`json", "`"} {
		s = strings.ReplaceAll(s, fence, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	// no balanced object found
	return ""
}
