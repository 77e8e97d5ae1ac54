package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/apresai/sheetvoice/internal/audio"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

const googleDefaultLanguage = "en-US"

type speechClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// GoogleProvider uses Cloud Text-to-Speech Chirp 3 HD voices with LINEAR16
// output at the container sample rate.
type GoogleProvider struct {
	client   speechClient
	language string
}

func NewGoogleProvider(ctx context.Context, cfg ProviderConfig) (*GoogleProvider, error) {
	var opts []option.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create google tts client: %w", err)
	}
	return newGoogleProvider(client, cfg.LanguageCode), nil
}

func newGoogleProvider(client speechClient, language string) *GoogleProvider {
	if language == "" {
		language = googleDefaultLanguage
	}
	return &GoogleProvider{client: client, language: language}
}

func (p *GoogleProvider) Name() string { return "google" }

// voiceName expands a bare prebuilt name such as "Kore" to the Chirp 3 HD
// voice for the configured language. Full names pass through.
func (p *GoogleProvider) voiceName(voice string) (name, language string) {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) == 3 {
		return voice, parts[0] + "-" + parts[1]
	}
	return p.language + "-Chirp3-HD-" + voice, p.language
}

func (p *GoogleProvider) Synthesize(ctx context.Context, r Request) ([]byte, error) {
	if r.Style != "" {
		slog.DebugContext(ctx, "style prompt ignored by Cloud TTS provider")
	}
	name, language := p.voiceName(r.Voice)

	// RetryPolicy is the only retry layer; disable the client's own.
	resp, err := p.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: r.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: language,
			Name:         name,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: audio.SampleRate,
		},
	}, gax.WithRetry(nil))
	if err != nil {
		return nil, fmt.Errorf("google tts synthesize: %w", err)
	}

	pcm, err := audio.StripWAVHeader(resp.GetAudioContent())
	if err != nil {
		return nil, &ResponseShapeError{Provider: "google", Field: "audio content", Err: err}
	}
	if len(pcm) == 0 {
		return nil, &ResponseShapeError{Provider: "google", Field: "audio content"}
	}
	return pcm, nil
}

func (p *GoogleProvider) Close() error { return p.client.Close() }

var _ Provider = (*GoogleProvider)(nil)
