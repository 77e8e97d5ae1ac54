// Package pipeline drives a narration run: fetch the texts, then synthesize
// and write one WAV file per text, strictly one item at a time.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/apresai/sheetvoice/internal/progress"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	dryRunPreviewChars = 50
	logPreviewChars    = 40
)

// TextSource yields the ordered texts for a run.
type TextSource interface {
	FetchTexts(ctx context.Context) ([]string, error)
}

// Synthesizer produces one WAV file for one text.
type Synthesizer interface {
	SynthesizeAndSave(ctx context.Context, text, path string) error
}

// Uploader copies a written file elsewhere and returns its location.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

type Options struct {
	Source      TextSource
	Synthesizer Synthesizer
	Uploader    Uploader

	OutputDir        string
	FilenamePrefix   string
	FilenameMaxChars int

	// DryRun lists the fetched texts on Out without synthesizing.
	DryRun bool
	Out    io.Writer

	OnProgress progress.Callback
}

// ItemError records one failed text.
type ItemError struct {
	Index int
	Text  string
	Err   error
}

// Summary is the outcome of a run. Failed items never make Run return an error.
type Summary struct {
	Success   int
	Failed    int
	Total     int
	OutputDir string
	Written   []string
	Failures  []ItemError
	// Interrupted is set when the run context was cancelled before every
	// item was attempted.
	Interrupted bool
}

type PipelineError struct {
	Stage   string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Run executes one batch. Only fetch and output-directory failures are
// returned as errors; per-item failures are counted in the Summary.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	runStart := time.Now()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	emit := opts.OnProgress
	if emit == nil {
		emit = progress.NopCallback
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	emit(progress.NewEvent(progress.StageFetch, "Fetching texts from Google Sheets...", 0, runStart))
	slog.InfoContext(ctx, "fetching texts from Google Sheets")
	texts, err := opts.Source.FetchTexts(ctx)
	if err != nil {
		perr := &PipelineError{Stage: "fetch", Message: "failed to read the spreadsheet", Err: err}
		emit(progress.Event{Stage: progress.StageFetch, Message: "Fetch failed", Error: perr})
		return nil, perr
	}

	summary := &Summary{Total: len(texts)}
	if len(texts) == 0 {
		slog.WarnContext(ctx, "no texts found in the selected rows")
		return summary, nil
	}
	slog.InfoContext(ctx, "fetched texts", "count", len(texts))

	if opts.DryRun {
		slog.InfoContext(ctx, "dry run: listing texts without calling the TTS API")
		for i, text := range texts {
			fmt.Fprintf(out, "  [%d/%d] %s\n", i+1, len(texts), Preview(text, dryRunPreviewChars))
		}
		return summary, nil
	}

	dir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return nil, &PipelineError{Stage: "output", Message: "failed to resolve output directory", Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &PipelineError{Stage: "output", Message: "failed to create output directory", Err: err}
	}
	summary.OutputDir = dir

	tracer := otel.Tracer("sheetvoice/pipeline")
	for i, text := range texts {
		index := i + 1
		path := filepath.Join(dir, OutputName(index, text, opts.FilenamePrefix, opts.FilenameMaxChars))

		emit(progress.Event{
			Stage:     progress.StageSynthesize,
			Message:   fmt.Sprintf("[%d/%d] %s", index, len(texts), Preview(text, logPreviewChars)),
			Percent:   float64(i) / float64(len(texts)),
			ItemNum:   index,
			ItemTotal: len(texts),
		})
		slog.InfoContext(ctx, "processing", "item", index, "total", len(texts), "text", Preview(text, logPreviewChars))

		itemCtx, span := tracer.Start(ctx, "pipeline.item", trace.WithAttributes(
			attribute.Int("item.index", index),
			attribute.String("item.file", filepath.Base(path)),
		))
		err := processItem(itemCtx, opts, text, path)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()

			summary.Failed++
			summary.Failures = append(summary.Failures, ItemError{Index: index, Text: text, Err: err})
			slog.ErrorContext(ctx, "item failed", "item", index, "error", err)
			if ctx.Err() != nil {
				summary.Interrupted = true
				break
			}
			continue
		}
		span.End()

		summary.Success++
		summary.Written = append(summary.Written, path)
		slog.InfoContext(ctx, "saved", "item", index, "path", path)

		if ctx.Err() != nil && index < len(texts) {
			summary.Interrupted = true
			break
		}
	}

	slog.InfoContext(ctx, "batch complete",
		"success", summary.Success,
		"failed", summary.Failed,
		"total", summary.Total,
		"output_dir", summary.OutputDir,
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	emit(progress.Event{
		Stage:     progress.StageComplete,
		Message:   "Done",
		Percent:   1,
		ItemNum:   summary.Total,
		ItemTotal: summary.Total,
		OutputDir: summary.OutputDir,
		Success:   summary.Success,
		Failed:    summary.Failed,
	})
	return summary, nil
}

func processItem(ctx context.Context, opts Options, text, path string) error {
	if err := opts.Synthesizer.SynthesizeAndSave(ctx, text, path); err != nil {
		return err
	}
	if opts.Uploader == nil {
		return nil
	}
	loc, err := opts.Uploader.Upload(ctx, path)
	if err != nil {
		return fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}
	slog.DebugContext(ctx, "uploaded", "path", path, "location", loc)
	return nil
}
