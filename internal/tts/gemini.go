package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	geminiDefaultModel   = "gemini-2.5-flash-preview-tts"
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	readAloudDirective = "Read the following text aloud exactly as written:"
)

// BuildPrompt prepends the optional style instruction to the fixed read-aloud
// directive and the text.
func BuildPrompt(text, style string) string {
	var b strings.Builder
	if style = strings.TrimSpace(style); style != "" {
		b.WriteString(style)
		b.WriteString("\n\n")
	}
	b.WriteString(readAloudDirective)
	b.WriteString("\n\n")
	b.WriteString(text)
	return b.String()
}

// geminiRequest is the generateContent request body for speech output.
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	SpeechConfig       geminiSpeechConfig `json:"speechConfig"`
}

type geminiSpeechConfig struct {
	VoiceConfig geminiVoiceConfig `json:"voiceConfig"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig geminiPrebuiltVoice `json:"prebuiltVoiceConfig"`
}

type geminiPrebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content *geminiRespContent `json:"content"`
}

type geminiRespContent struct {
	Parts []geminiRespPart `json:"parts"`
}

type geminiRespPart struct {
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 PCM
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GeminiProvider calls generateContent with audio output. The same request
// shape serves AI Studio (API key) and Vertex AI (OAuth2 bearer token); only
// the endpoint and the authorize hook differ.
type GeminiProvider struct {
	name       string
	endpoint   string
	authorize  func(ctx context.Context, req *http.Request) error
	httpClient *http.Client
}

// NewGeminiProvider creates the AI Studio provider. cfg.APIKey is required.
func NewGeminiProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini provider requires an API key")
	}
	model := cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	base := cfg.BaseURL
	if base == "" {
		base = geminiDefaultBaseURL
	}
	apiKey := cfg.APIKey

	return &GeminiProvider{
		name:     "gemini",
		endpoint: strings.TrimRight(base, "/") + "/models/" + model + ":generateContent",
		authorize: func(_ context.Context, req *http.Request) error {
			req.Header.Set("x-goog-api-key", apiKey)
			return nil
		},
		httpClient: httpClientOrDefault(cfg.HTTPClient),
	}, nil
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 300 * time.Second}
}

func (p *GeminiProvider) Name() string { return p.name }

func (p *GeminiProvider) Synthesize(ctx context.Context, r Request) ([]byte, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: BuildPrompt(r.Text, r.Style)}}},
		},
		GenerationConfig: geminiGenConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: geminiSpeechConfig{
				VoiceConfig: geminiVoiceConfig{
					PrebuiltVoiceConfig: geminiPrebuiltVoice{VoiceName: r.Voice},
				},
			},
		},
	}
	return p.doRequest(ctx, req)
}

func (p *GeminiProvider) doRequest(ctx context.Context, reqBody geminiRequest) ([]byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", p.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := p.authorize(ctx, req); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s request: %w", p.name, err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", p.name, err)
	}
	slog.DebugContext(ctx, "tts response", "provider", p.name, "status", res.StatusCode,
		"bytes", len(respBody), "elapsed", time.Since(start).Round(time.Millisecond))

	if res.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: p.name, StatusCode: res.StatusCode, Body: errorMessage(respBody)}
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &ResponseShapeError{Provider: p.name, Field: "JSON body", Err: err}
	}
	return p.extractAudio(resp)
}

// extractAudio returns the first candidate's first part's inline audio,
// checking every level on the way down.
func (p *GeminiProvider) extractAudio(resp geminiResponse) ([]byte, error) {
	shape := func(field string, err error) error {
		return &ResponseShapeError{Provider: p.name, Field: field, Err: err}
	}
	if len(resp.Candidates) == 0 {
		return nil, shape("candidates", nil)
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return nil, shape("content", nil)
	}
	if len(content.Parts) == 0 {
		return nil, shape("parts", nil)
	}
	inline := content.Parts[0].InlineData
	if inline == nil || inline.Data == "" {
		return nil, shape("inline audio data", nil)
	}
	pcm, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		return nil, shape("inline audio data", err)
	}
	if len(pcm) == 0 {
		return nil, shape("inline audio data", nil)
	}
	return pcm, nil
}

func errorMessage(body []byte) string {
	var e geminiErrorBody
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		if e.Error.Status != "" {
			return e.Error.Status + ": " + e.Error.Message
		}
		return e.Error.Message
	}
	s := string(body)
	return s[:min(200, len(s))]
}

func (p *GeminiProvider) Close() error { return nil }

var _ Provider = (*GeminiProvider)(nil)
