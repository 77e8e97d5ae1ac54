package tts

import (
	"context"
	"fmt"
	"net/http"
	"sort"
)

// Request is a single synthesis call. Style is an optional delivery
// instruction; providers that cannot take one ignore it.
type Request struct {
	Text  string
	Voice string
	Style string
}

// Provider issues one speech synthesis call and returns raw PCM
// (16-bit signed little-endian, mono, 24 kHz). Providers do not retry.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, req Request) ([]byte, error)
	Close() error
}

// ProviderConfig carries the settings shared by all providers. Fields a
// provider does not use are ignored.
type ProviderConfig struct {
	Model        string
	APIKey       string
	Project      string
	Region       string
	LanguageCode string

	// BaseURL overrides the API endpoint root (tests, regional proxies).
	BaseURL    string
	HTTPClient *http.Client
}

// VoiceInfo describes an available voice for the list-voices command.
type VoiceInfo struct {
	ID          string
	Description string
}

// ProviderNames lists the providers NewProvider accepts.
func ProviderNames() []string {
	return []string{"gemini", "gemini-vertex", "google"}
}

// NewProvider creates a TTS provider by name.
func NewProvider(ctx context.Context, name string, cfg ProviderConfig) (Provider, error) {
	switch name {
	case "gemini":
		return NewGeminiProvider(cfg)
	case "gemini-vertex":
		return NewVertexProvider(ctx, cfg)
	case "google":
		return NewGoogleProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose gemini, gemini-vertex, or google", name)
	}
}

// AvailableVoices returns the prebuilt voice catalog. Gemini, Vertex and the
// Cloud TTS Chirp 3 HD voices share the same names.
func AvailableVoices(providerName string) ([]VoiceInfo, error) {
	switch providerName {
	case "gemini", "gemini-vertex", "google":
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", providerName)
	}
	voices := make([]VoiceInfo, 0, len(prebuiltVoices))
	for id, desc := range prebuiltVoices {
		voices = append(voices, VoiceInfo{ID: id, Description: desc})
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].ID < voices[j].ID })
	return voices, nil
}

var prebuiltVoices = map[string]string{
	"Achernar":      "Soft",
	"Algieba":       "Smooth",
	"Alnilam":       "Firm",
	"Aoede":         "Breezy",
	"Callirrhoe":    "Easy-going",
	"Charon":        "Informative",
	"Despina":       "Smooth",
	"Enceladus":     "Breathy",
	"Fenrir":        "Excitable",
	"Gacrux":        "Mature",
	"Iapetus":       "Clear",
	"Kore":          "Firm",
	"Leda":          "Youthful",
	"Orus":          "Firm",
	"Puck":          "Upbeat",
	"Schedar":       "Even",
	"Sulafat":       "Warm",
	"Vindemiatrix":  "Gentle",
	"Zephyr":        "Bright",
	"Zubenelgenubi": "Casual",
}
