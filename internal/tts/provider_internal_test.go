package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/apresai/sheetvoice/internal/audio"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestVertexProvider_EndpointAndBearer(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	done := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotAuth = r.URL.Path, r.Header.Get("Authorization")
		done <- struct{}{}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"data":"AQI="}}]}}]}`))
	}))
	t.Cleanup(srv.Close)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok", TokenType: "Bearer"})
	p := newVertexProvider(ProviderConfig{BaseURL: srv.URL + "/v1", HTTPClient: srv.Client()}, "proj", "europe-west4", "gemini-2.5-flash-tts", ts)

	pcm, err := p.Synthesize(context.Background(), Request{Text: "Hi", Voice: "Kore"})
	require.NoError(t, err)
	<-done

	assert.Equal(t, []byte{1, 2}, pcm)
	assert.Equal(t, "gemini-vertex", p.Name())
	assert.Equal(t, "/v1/projects/proj/locations/europe-west4/publishers/google/models/gemini-2.5-flash-tts:generateContent", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
}

type fakeSpeechClient struct {
	opts []gax.CallOption
	req  *texttospeechpb.SynthesizeSpeechRequest
	resp *texttospeechpb.SynthesizeSpeechResponse
	err  error
}

func (f *fakeSpeechClient) SynthesizeSpeech(_ context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error) {
	f.req = req
	f.opts = opts
	return f.resp, f.err
}

func (f *fakeSpeechClient) Close() error { return nil }

func TestGoogleProvider_Synthesize(t *testing.T) {
	t.Parallel()

	pcm := []byte{9, 8, 7, 6}
	fake := &fakeSpeechClient{resp: &texttospeechpb.SynthesizeSpeechResponse{AudioContent: audio.WrapPCM(pcm)}}
	p := newGoogleProvider(fake, "ja-JP")

	got, err := p.Synthesize(context.Background(), Request{Text: "こんにちは", Voice: "Kore", Style: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, pcm, got)

	assert.Equal(t, "ja-JP-Chirp3-HD-Kore", fake.req.GetVoice().GetName())
	assert.Equal(t, "ja-JP", fake.req.GetVoice().GetLanguageCode())
	assert.Equal(t, texttospeechpb.AudioEncoding_LINEAR16, fake.req.GetAudioConfig().GetAudioEncoding())
	assert.Equal(t, int32(24000), fake.req.GetAudioConfig().GetSampleRateHertz())
}

func TestGoogleProvider_FullVoiceName(t *testing.T) {
	t.Parallel()

	fake := &fakeSpeechClient{resp: &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte{1, 0}}}
	p := newGoogleProvider(fake, "")

	_, err := p.Synthesize(context.Background(), Request{Text: "hi", Voice: "en-GB-Chirp3-HD-Puck"})
	require.NoError(t, err)
	assert.Equal(t, "en-GB-Chirp3-HD-Puck", fake.req.GetVoice().GetName())
	assert.Equal(t, "en-GB", fake.req.GetVoice().GetLanguageCode())
}

func TestGoogleProvider_Errors(t *testing.T) {
	t.Parallel()

	unavailable := &fakeSpeechClient{err: status.Error(codes.Unavailable, "try later")}
	_, err := newGoogleProvider(unavailable, "").Synthesize(context.Background(), Request{Text: "x", Voice: "Kore"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	empty := &fakeSpeechClient{resp: &texttospeechpb.SynthesizeSpeechResponse{}}
	_, err = newGoogleProvider(empty, "").Synthesize(context.Background(), Request{Text: "x", Voice: "Kore"})
	var shape *ResponseShapeError
	require.ErrorAs(t, err, &shape)
}

func TestAvailableVoices(t *testing.T) {
	t.Parallel()

	voices, err := AvailableVoices("gemini")
	require.NoError(t, err)
	require.NotEmpty(t, voices)
	for i := 1; i < len(voices); i++ {
		assert.Less(t, voices[i-1].ID, voices[i].ID)
	}

	_, err = AvailableVoices("polly")
	require.Error(t, err)
}

func TestNewProvider_Unknown(t *testing.T) {
	t.Parallel()

	_, err := NewProvider(context.Background(), "elevenlabs", ProviderConfig{})
	require.Error(t, err)
}

type blockingTokenSource struct{ release chan struct{} }

func (b blockingTokenSource) Token() (*oauth2.Token, error) {
	<-b.release
	return &oauth2.Token{AccessToken: "late"}, nil
}

func TestVertexProvider_TokenRefreshHonorsContext(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	ts := blockingTokenSource{release: make(chan struct{})}
	t.Cleanup(func() { close(ts.release) })
	p := newVertexProvider(ProviderConfig{BaseURL: srv.URL + "/v1", HTTPClient: srv.Client()}, "proj", "us-central1", "m", ts)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Synthesize(ctx, Request{Text: "Hi", Voice: "Kore"})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, hits.Load(), "no request is sent without a token")
}

func TestGoogleProvider_DisablesClientRetry(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 0, 2, 0}
	fake := &fakeSpeechClient{resp: &texttospeechpb.SynthesizeSpeechResponse{AudioContent: audio.WrapPCM(pcm)}}
	p := newGoogleProvider(fake, "")

	_, err := p.Synthesize(context.Background(), Request{Text: "Hi", Voice: "Kore"})
	require.NoError(t, err)

	settings := &gax.CallSettings{Retry: func() gax.Retryer { return nil }}
	for _, o := range fake.opts {
		o.Resolve(settings)
	}
	assert.Nil(t, settings.Retry, "the client's built-in retry must be off")
}
