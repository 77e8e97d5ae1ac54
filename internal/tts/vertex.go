package tts

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	vertexDefaultModel  = "gemini-2.5-flash-tts"
	vertexDefaultRegion = "us-central1"
	cloudPlatformScope  = "https://www.googleapis.com/auth/cloud-platform"
)

// NewVertexProvider creates a Gemini TTS provider on Vertex AI authenticated
// with Application Default Credentials. The project comes from cfg.Project or
// GCP_PROJECT; the region from cfg.Region, GCP_REGION, or us-central1.
func NewVertexProvider(ctx context.Context, cfg ProviderConfig) (*GeminiProvider, error) {
	project := cfg.Project
	if project == "" {
		project = os.Getenv("GCP_PROJECT")
	}
	if project == "" {
		return nil, fmt.Errorf("tts.project or GCP_PROJECT is required for the gemini-vertex TTS provider")
	}
	region := cfg.Region
	if region == "" {
		region = os.Getenv("GCP_REGION")
	}
	if region == "" {
		region = vertexDefaultRegion
	}
	model := cfg.Model
	if model == "" || model == geminiDefaultModel {
		model = vertexDefaultModel
	}

	ts, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("get default token source: %w (hint: run 'gcloud auth application-default login' or set GOOGLE_APPLICATION_CREDENTIALS)", err)
	}

	return newVertexProvider(cfg, project, region, model, oauth2.ReuseTokenSource(nil, ts)), nil
}

func newVertexProvider(cfg ProviderConfig, project, region, model string, ts oauth2.TokenSource) *GeminiProvider {
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", region)
	}
	endpoint := fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		strings.TrimRight(base, "/"), project, region, model)

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 70 * time.Second,
				IdleConnTimeout:       10 * time.Second,
			},
		}
	}

	return &GeminiProvider{
		name:     "gemini-vertex",
		endpoint: endpoint,
		authorize: func(ctx context.Context, req *http.Request) error {
			tok, err := tokenWithContext(ctx, ts)
			if err != nil {
				return fmt.Errorf("get access token: %w", err)
			}
			tok.SetAuthHeader(req)
			return nil
		},
		httpClient: client,
	}
}

// tokenWithContext stops waiting on a token refresh once ctx is done.
// oauth2.TokenSource has no context of its own.
func tokenWithContext(ctx context.Context, ts oauth2.TokenSource) (*oauth2.Token, error) {
	type result struct {
		tok *oauth2.Token
		err error
	}
	ch := make(chan result, 1)
	go func() {
		tok, err := ts.Token()
		ch <- result{tok, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.tok, r.err
	}
}
