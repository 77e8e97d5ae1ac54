package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apresai/sheetvoice/internal/audio"
	"github.com/apresai/sheetvoice/internal/pipeline"
	"github.com/apresai/sheetvoice/internal/progress"
	"github.com/apresai/sheetvoice/internal/sheets"
	"github.com/apresai/sheetvoice/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// columnSource windows a fixed column the way the Sheets adapter does.
type columnSource struct {
	column []string
	start  int
	end    *int
	err    error
}

func (s *columnSource) FetchTexts(context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return sheets.Window(s.column, s.start, s.end), nil
}

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fail  map[string]error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Synthesize(_ context.Context, req tts.Request) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if err, ok := p.fail[req.Text]; ok {
		return nil, err
	}
	return []byte{1, 0, 2, 0, 3, 0}, nil
}

func (p *fakeProvider) Close() error { return nil }

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeUploader struct {
	uploaded []string
	err      error
}

func (u *fakeUploader) Upload(_ context.Context, path string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.uploaded = append(u.uploaded, filepath.Base(path))
	return "s3://bucket/" + filepath.Base(path), nil
}

func intPtr(n int) *int { return &n }

func newSynth(p tts.Provider) *tts.Synthesizer {
	return tts.NewSynthesizer(p, "Kore", "", tts.RetryPolicy{
		MaxAttempts: 3,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})
}

func sampleSource() *columnSource {
	return &columnSource{column: []string{"header", "Hello", "", "World"}, start: 2, end: intPtr(4)}
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	provider := &fakeProvider{}
	var events []progress.Event

	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:           sampleSource(),
		Synthesizer:      newSynth(provider),
		OutputDir:        dir,
		FilenameMaxChars: 20,
		OnProgress:       func(e progress.Event) { events = append(events, e) },
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, dir, summary.OutputDir)
	assert.Equal(t, 2, provider.Calls())

	for _, name := range []string{"001_Hello.wav", "002_World.wav"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		h, err := audio.ParseHeader(data)
		require.NoError(t, err, name)
		assert.Equal(t, uint32(audio.SampleRate), h.SampleRate)
		assert.Equal(t, uint32(6), h.DataSize)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, progress.StageFetch, events[0].Stage)
	last := events[len(events)-1]
	assert.Equal(t, progress.StageComplete, last.Stage)
	assert.Equal(t, 2, last.Success)
	assert.Equal(t, dir, last.OutputDir)
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	provider := &fakeProvider{}
	var out bytes.Buffer

	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:      sampleSource(),
		Synthesizer: newSynth(provider),
		OutputDir:   dir,
		DryRun:      true,
		Out:         &out,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	assert.Equal(t, []string{"  [1/2] Hello", "  [2/2] World"}, lines)
	assert.Equal(t, 2, summary.Total)
	assert.Zero(t, summary.Success)
	assert.Zero(t, provider.Calls())
	assert.NoDirExists(t, dir)
}

func TestRun_DryRunTruncatesPreview(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	long := strings.Repeat("x", 80)
	_, err := pipeline.Run(context.Background(), pipeline.Options{
		Source: &columnSource{column: []string{long}, start: 1},
		DryRun: true,
		Out:    &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "  [1/1] "+strings.Repeat("x", 50)+"...\n", out.String())
}

func TestRun_ItemFailureContinues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	provider := &fakeProvider{fail: map[string]error{
		"Hello": &tts.StatusError{Provider: "fake", StatusCode: 400, Body: "bad request"},
	}}

	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:           sampleSource(),
		Synthesizer:      newSynth(provider),
		OutputDir:        dir,
		FilenameMaxChars: 20,
	})
	require.NoError(t, err, "item failures are not run errors")

	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Total)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, 1, summary.Failures[0].Index)
	assert.Equal(t, "Hello", summary.Failures[0].Text)
	assert.Equal(t, 2, provider.Calls(), "400 is not retried")

	assert.NoFileExists(t, filepath.Join(dir, "001_Hello.wav"))
	assert.FileExists(t, filepath.Join(dir, "002_World.wav"))
}

func TestRun_FetchError(t *testing.T) {
	t.Parallel()

	denied := errors.New("403 forbidden")
	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:    &columnSource{err: denied},
		OutputDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.Nil(t, summary)

	var perr *pipeline.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "fetch", perr.Stage)
	assert.ErrorIs(t, err, denied)
}

func TestRun_EmptyResult(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	provider := &fakeProvider{}
	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:      &columnSource{column: []string{"header", " ", ""}, start: 2},
		Synthesizer: newSynth(provider),
		OutputDir:   dir,
	})
	require.NoError(t, err)
	assert.Equal(t, pipeline.Summary{}, *summary)
	assert.Zero(t, provider.Calls())
	assert.NoDirExists(t, dir)
}

func TestRun_UploadsEachFile(t *testing.T) {
	t.Parallel()

	up := &fakeUploader{}
	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:           sampleSource(),
		Synthesizer:      newSynth(&fakeProvider{}),
		Uploader:         up,
		OutputDir:        t.TempDir(),
		FilenamePrefix:   "ep1",
		FilenameMaxChars: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, []string{"ep1_001_Hello.wav", "ep1_002_World.wav"}, up.uploaded)
}

func TestRun_UploadFailureCountsAsItemFailure(t *testing.T) {
	t.Parallel()

	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:           sampleSource(),
		Synthesizer:      newSynth(&fakeProvider{}),
		Uploader:         &fakeUploader{err: errors.New("no credentials")},
		OutputDir:        t.TempDir(),
		FilenameMaxChars: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Success)
	assert.Equal(t, 2, summary.Failed)
	assert.Contains(t, summary.Failures[0].Err.Error(), "upload 001_Hello.wav")
}

func TestRun_OutputDirError(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:      sampleSource(),
		Synthesizer: newSynth(&fakeProvider{}),
		OutputDir:   filepath.Join(blocker, "out"),
	})
	var perr *pipeline.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "output", perr.Stage)
}

func TestRun_InterruptDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unavailable := &tts.StatusError{Provider: "fake", StatusCode: 503}
	provider := &fakeProvider{fail: map[string]error{"Hello": unavailable}}
	synth := tts.NewSynthesizer(provider, "Kore", "", tts.RetryPolicy{
		MaxAttempts: 3,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})
	dir := t.TempDir()

	summary, err := pipeline.Run(ctx, pipeline.Options{
		Source:           sampleSource(),
		Synthesizer:      synth,
		OutputDir:        dir,
		FilenameMaxChars: 20,
	})
	require.NoError(t, err)

	assert.True(t, summary.Interrupted)
	assert.Equal(t, 0, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.ErrorIs(t, summary.Failures[0].Err, context.Canceled)
	assert.ErrorIs(t, summary.Failures[0].Err, unavailable)
	assert.Equal(t, 1, provider.Calls(), "no attempt after cancellation")
	assert.NoFileExists(t, filepath.Join(dir, "002_World.wav"))
}

func TestRun_CompletedRunIsNotInterrupted(t *testing.T) {
	t.Parallel()

	summary, err := pipeline.Run(context.Background(), pipeline.Options{
		Source:           sampleSource(),
		Synthesizer:      newSynth(&fakeProvider{}),
		OutputDir:        t.TempDir(),
		FilenameMaxChars: 20,
	})
	require.NoError(t, err)
	assert.False(t, summary.Interrupted)
}
