// Package config loads the sheetvoice run configuration from a YAML file,
// a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath          = "config.yaml"
	DefaultAPIKeyEnv     = "GEMINI_API_KEY"
	SpreadsheetIDEnv     = "SPREADSHEET_ID"
	DefaultTextColumn    = "A"
	DefaultStartRow      = 2
	DefaultProvider      = "gemini"
	DefaultModel         = "gemini-2.5-flash-preview-tts"
	DefaultVoice         = "Kore"
	DefaultMaxRetries    = 3
	DefaultOutputDir     = "output"
	DefaultMaxFilenameCh = 20
)

var ErrConfigNotFound = errors.New("config file not found")

// Config is the root configuration structure.
type Config struct {
	Auth         AuthConfig    `yaml:"auth"`
	GoogleSheets SheetsConfig  `yaml:"google_sheets"`
	TTS          TTSConfig     `yaml:"tts"`
	Output       OutputConfig  `yaml:"output"`
	Logging      LoggingConfig `yaml:"logging"`
}

// AuthConfig holds credential sources. GeminiAPIKey is never read from the
// file; it is filled from the environment variable named by GeminiAPIKeyEnv.
type AuthConfig struct {
	ServiceAccountKey string `yaml:"service_account_key"`
	GeminiAPIKeyEnv   string `yaml:"gemini_api_key_env"`
	GeminiAPIKey      string `yaml:"-"`
}

// SheetsConfig selects the column and row window to read.
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`
	SheetName     string `yaml:"sheet_name"`
	TextColumn    string `yaml:"text_column"`
	StartRow      int    `yaml:"start_row"`
	EndRow        *int   `yaml:"end_row"`
}

type TTSConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	VoiceName   string `yaml:"voice_name"`
	StylePrompt string `yaml:"style_prompt"`
	MaxRetries  int    `yaml:"max_retries"`
	Project     string `yaml:"project"`
	Region      string `yaml:"region"`
	// LanguageCode is used by the google provider only.
	LanguageCode string `yaml:"language_code"`
}

type OutputConfig struct {
	Directory        string `yaml:"directory"`
	FilenamePrefix   string `yaml:"filename_prefix"`
	FilenameMaxChars int    `yaml:"filename_max_chars"`
	S3Bucket         string `yaml:"s3_bucket"`
	S3Prefix         string `yaml:"s3_prefix"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Overrides carries CLI flag values. Empty strings and nil pointers leave the
// loaded value untouched.
type Overrides struct {
	Voice    string
	Output   string
	StartRow *int
	EndRow   *int
}

// ValidationError lists every problem found in a loaded configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Default returns a Config with every optional field set.
func Default() Config {
	return Config{
		Auth: AuthConfig{GeminiAPIKeyEnv: DefaultAPIKeyEnv},
		GoogleSheets: SheetsConfig{
			TextColumn: DefaultTextColumn,
			StartRow:   DefaultStartRow,
		},
		TTS: TTSConfig{
			Provider:   DefaultProvider,
			Model:      DefaultModel,
			VoiceName:  DefaultVoice,
			MaxRetries: DefaultMaxRetries,
		},
		Output: OutputConfig{
			Directory:        DefaultOutputDir,
			FilenameMaxChars: DefaultMaxFilenameCh,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path over the defaults, then overlays the
// environment. A .env file in the working directory is loaded first if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// Parse decodes YAML over the defaults without consulting the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	return &cfg, nil
}

// fillDefaults restores defaults for keys present in the file but left blank.
// start_row is left alone so an explicit 0 reaches Validate.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Auth.GeminiAPIKeyEnv == "" {
		c.Auth.GeminiAPIKeyEnv = d.Auth.GeminiAPIKeyEnv
	}
	if strings.TrimSpace(c.GoogleSheets.TextColumn) == "" {
		c.GoogleSheets.TextColumn = d.GoogleSheets.TextColumn
	}
	if c.TTS.Provider == "" {
		c.TTS.Provider = d.TTS.Provider
	}
	if c.TTS.Model == "" {
		c.TTS.Model = d.TTS.Model
	}
	if c.TTS.VoiceName == "" {
		c.TTS.VoiceName = d.TTS.VoiceName
	}
	if c.TTS.MaxRetries == 0 {
		c.TTS.MaxRetries = d.TTS.MaxRetries
	}
	if c.Output.Directory == "" {
		c.Output.Directory = d.Output.Directory
	}
	if c.Output.FilenameMaxChars == 0 {
		c.Output.FilenameMaxChars = d.Output.FilenameMaxChars
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.Auth.GeminiAPIKey = strings.TrimSpace(getenv(c.Auth.GeminiAPIKeyEnv))
	if id := strings.TrimSpace(getenv(SpreadsheetIDEnv)); id != "" {
		c.GoogleSheets.SpreadsheetID = id
	}
}

// Apply copies the non-empty CLI overrides into c.
func (c *Config) Apply(o Overrides) {
	if o.Voice != "" {
		c.TTS.VoiceName = o.Voice
	}
	if o.Output != "" {
		c.Output.Directory = o.Output
	}
	if o.StartRow != nil {
		c.GoogleSheets.StartRow = *o.StartRow
	}
	if o.EndRow != nil {
		end := *o.EndRow
		c.GoogleSheets.EndRow = &end
	}
}

// Validate checks the configuration for a run. The API key is required
// whenever the API-key provider is selected, dry runs included.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.GoogleSheets.SpreadsheetID) == "" {
		problems = append(problems, fmt.Sprintf("google_sheets.spreadsheet_id is empty (set it in the config file or %s)", SpreadsheetIDEnv))
	}
	if c.GoogleSheets.StartRow < 1 {
		problems = append(problems, fmt.Sprintf("google_sheets.start_row must be >= 1 (got %d)", c.GoogleSheets.StartRow))
	}
	if c.GoogleSheets.EndRow != nil && *c.GoogleSheets.EndRow < 1 {
		problems = append(problems, fmt.Sprintf("google_sheets.end_row must be >= 1 (got %d)", *c.GoogleSheets.EndRow))
	}
	if c.TTS.MaxRetries < 1 {
		problems = append(problems, fmt.Sprintf("tts.max_retries must be >= 1 (got %d)", c.TTS.MaxRetries))
	}
	if c.Output.FilenameMaxChars < 1 {
		problems = append(problems, fmt.Sprintf("output.filename_max_chars must be >= 1 (got %d)", c.Output.FilenameMaxChars))
	}

	switch c.TTS.Provider {
	case "gemini":
		if c.Auth.GeminiAPIKey == "" {
			problems = append(problems, fmt.Sprintf("environment variable %s is not set (put the Gemini API key in .env or the environment)", c.Auth.GeminiAPIKeyEnv))
		}
	case "gemini-vertex", "google":
	default:
		problems = append(problems, fmt.Sprintf("tts.provider %q is not one of gemini, gemini-vertex, google", c.TTS.Provider))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
