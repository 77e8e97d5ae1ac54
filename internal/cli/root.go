package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/apresai/sheetvoice/internal/config"
	"github.com/apresai/sheetvoice/internal/observability"
	"github.com/apresai/sheetvoice/internal/pipeline"
	"github.com/apresai/sheetvoice/internal/progress"
	"github.com/apresai/sheetvoice/internal/sheets"
	"github.com/apresai/sheetvoice/internal/storage"
	"github.com/apresai/sheetvoice/internal/tts"
	"github.com/spf13/cobra"
)

var Version = "dev"

const serviceName = "sheetvoice"

// ErrInterrupted is returned when SIGINT or SIGTERM stops a batch early.
var ErrInterrupted = errors.New("interrupted")

var rootCmd = newRootCmd()

var (
	flagConfig    string
	flagVoice     string
	flagOutput    string
	flagRows      string
	flagDryRun    bool
	flagVerbose   bool
	flagLogFormat string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sheetvoice",
		Short: "Convert spreadsheet rows into WAV narration files with Gemini TTS",
		Long: `sheetvoice reads one column of a Google Sheet and writes one WAV file
per non-empty cell, synthesized with Gemini text-to-speech.`,
		Example: `  sheetvoice --dry-run
  sheetvoice --rows 2-10 --voice Puck
  sheetvoice -c narration.yaml -o ./audio`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBatch,
	}
	root.Flags().StringVarP(&flagConfig, "config", "c", config.DefaultPath, "Path to the YAML config file")
	root.Flags().StringVar(&flagVoice, "voice", "", "Voice name (overrides tts.voice_name)")
	root.Flags().StringVarP(&flagOutput, "output", "o", "", "Output directory (overrides output.directory)")
	root.Flags().StringVar(&flagRows, "rows", "", "Row range START-END, START- or -END (1-based, inclusive)")
	root.Flags().BoolVar(&flagDryRun, "dry-run", false, "List the texts without calling the TTS API")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	root.Flags().StringVar(&flagLogFormat, "log-format", "", "Log format: text or json (overrides logging.format)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sheetvoice %s\n", Version)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "list-voices",
		Short: "List the prebuilt voices accepted by --voice",
		Args:  cobra.NoArgs,
		RunE:  runListVoices,
	})
	return root
}

// Execute runs the root command. Errors have already been logged.
func Execute() error {
	return rootCmd.Execute()
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		// The logger is not configured yet.
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}

	showBar := !flagVerbose && !flagDryRun && progress.IsTTY(os.Stdout)
	if err := setupLogger(cfg, cmd.ErrOrStderr(), showBar); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}

	if observability.TracingEnabled() {
		tp, err := observability.InitTracer(ctx, serviceName, Version)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					slog.Warn("flush traces", "error", err)
				}
			}()
		}
	}

	err = run(ctx, cfg, cmd.OutOrStdout(), showBar)
	if err != nil {
		slog.Error("run failed", "error", err)
	}
	return err
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	overrides := config.Overrides{Voice: flagVoice, Output: flagOutput}
	if flagRows != "" {
		rr, err := sheets.ParseRowRange(flagRows)
		if err != nil {
			return nil, err
		}
		overrides.StartRow, overrides.EndRow = rr.Start, rr.End
	}
	cfg.Apply(overrides)
	if flagLogFormat != "" {
		cfg.Logging.Format = flagLogFormat
	}
	if flagVerbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger installs the default slog logger. While the progress bar owns
// stdout only warnings and errors are logged.
func setupLogger(cfg *config.Config, w io.Writer, showBar bool) error {
	level := cfg.Logging.Level
	if showBar {
		if l, err := observability.ParseLevel(level); err == nil && l < slog.LevelWarn {
			level = "warn"
		}
	}
	logger, err := observability.InitLogger(observability.LogOptions{
		Level:  level,
		Format: cfg.Logging.Format,
		Writer: w,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func run(ctx context.Context, cfg *config.Config, out io.Writer, showBar bool) error {
	svc, err := sheets.NewService(ctx, &sheets.CredentialResolver{ServiceAccountKey: cfg.Auth.ServiceAccountKey})
	if err != nil {
		return fmt.Errorf("connect to Google Sheets: %w", err)
	}
	source, err := sheets.NewSource(svc, cfg.GoogleSheets)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Source:           source,
		OutputDir:        cfg.Output.Directory,
		FilenamePrefix:   cfg.Output.FilenamePrefix,
		FilenameMaxChars: cfg.Output.FilenameMaxChars,
		DryRun:           flagDryRun,
		Out:              out,
	}

	if !flagDryRun {
		provider, err := tts.NewProvider(ctx, cfg.TTS.Provider, tts.ProviderConfig{
			Model:        cfg.TTS.Model,
			APIKey:       cfg.Auth.GeminiAPIKey,
			Project:      cfg.TTS.Project,
			Region:       cfg.TTS.Region,
			LanguageCode: cfg.TTS.LanguageCode,
		})
		if err != nil {
			return fmt.Errorf("create TTS provider: %w", err)
		}
		defer provider.Close()
		opts.Synthesizer = tts.NewSynthesizer(provider, cfg.TTS.VoiceName, cfg.TTS.StylePrompt,
			tts.RetryPolicy{MaxAttempts: cfg.TTS.MaxRetries})

		if cfg.Output.S3Bucket != "" {
			store, err := storage.NewS3Storage(ctx, cfg.Output.S3Bucket, cfg.Output.S3Prefix)
			if err != nil {
				return fmt.Errorf("configure S3 upload: %w", err)
			}
			opts.Uploader = store
		}
	}

	slog.Info("starting batch",
		"spreadsheet_id", cfg.GoogleSheets.SpreadsheetID,
		"column", cfg.GoogleSheets.TextColumn,
		"provider", cfg.TTS.Provider,
		"voice", cfg.TTS.VoiceName,
		"dry_run", flagDryRun,
	)

	if showBar {
		r := progress.NewBarRenderer(os.Stdout)
		defer r.Finish()
		opts.OnProgress = r.Handle
	}

	summary, err := pipeline.Run(ctx, opts)
	if err != nil {
		return err
	}
	if !showBar && !flagDryRun && summary.Total > 0 {
		printSummary(out, summary)
	}
	return batchError(summary)
}

// batchError keeps exit status 0 for item failures but not for an
// interrupted batch.
func batchError(s *pipeline.Summary) error {
	if s.Interrupted {
		return fmt.Errorf("%w: batch stopped after %d of %d items", ErrInterrupted, s.Success+s.Failed, s.Total)
	}
	return nil
}

func printSummary(w io.Writer, s *pipeline.Summary) {
	fmt.Fprintf(w, "\nDone: %d succeeded, %d failed, %d total\n", s.Success, s.Failed, s.Total)
	fmt.Fprintf(w, "Output: %s\n", s.OutputDir)
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  failed [%d] %s: %v\n", f.Index, pipeline.Preview(f.Text, 40), f.Err)
	}
}

func runListVoices(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	voices, err := tts.AvailableVoices(config.DefaultProvider)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable voices (providers: %s):\n", strings.Join(tts.ProviderNames(), ", "))
	fmt.Fprintf(w, "  %s\n", strings.Repeat("─", 50))
	fmt.Fprintf(w, "  %-16s %s\n", "ID", "DESCRIPTION")
	for _, v := range voices {
		def := ""
		if v.ID == config.DefaultVoice {
			def = " (default)"
		}
		fmt.Fprintf(w, "  %-16s %s%s\n", v.ID, v.Description, def)
	}
	fmt.Fprintln(w)
	return nil
}
