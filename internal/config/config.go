package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/faithful-pdf/internal/pdf/extraction"
	"github.com/a3tai/faithful-pdf/internal/pdf/render"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Output formats of one-shot extraction
	FormatJSON     = "json"
	FormatHTML     = "html"
	FormatMarkdown = "markdown"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	DefaultMaxFileSize = extraction.DefaultMaxFileSize

	// EnvPrefix prefixes every environment variable
	EnvPrefix = "FAITHFUL_PDF"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// ErrVersionRequested is returned when --version is on the command line
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the extractor and its MCP server
type Config struct {
	// Server configuration
	Mode string `mapstructure:"mode" validate:"oneof=stdio server"`
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"min=0,max=65535"`

	// RateLimit caps extraction tool calls per second; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`

	// PDF configuration
	PDFDirectory string `mapstructure:"dir"`
	MaxFileSize  int64  `mapstructure:"max_file_size" validate:"gt=0"`

	// Logging
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=console json"`
	LogFile   string `mapstructure:"log_file"`

	// One-shot extraction; the server runs when Input is empty.
	Input  string `mapstructure:"input"`
	Format string `mapstructure:"format" validate:"oneof=json html markdown"`
	Output string `mapstructure:"output"`

	// ConfigFile is the optional YAML, TOML or JSON file that was read.
	ConfigFile string `mapstructure:"-"`

	// Application configuration
	Version    string `mapstructure:"-"`
	ServerName string `mapstructure:"-"`

	Extraction Extraction `mapstructure:"extraction"`
}

// Extraction holds the pipeline thresholds. Every threshold is tunable.
type Extraction struct {
	RowTolerance       float64 `mapstructure:"row_tolerance" validate:"gt=0"`
	MinZoneRows        int     `mapstructure:"min_zone_rows" validate:"min=1"`
	GridEdgeEpsilon    float64 `mapstructure:"grid_edge_epsilon" validate:"gt=0"`
	GridTolerance      float64 `mapstructure:"grid_tolerance" validate:"gte=0"`
	RectWidthCoverage  float64 `mapstructure:"rect_width_coverage" validate:"gt=0,lte=1"`
	RectHeightCoverage float64 `mapstructure:"rect_height_coverage" validate:"gt=0,lte=1"`
	LineAxisTolerance  float64 `mapstructure:"line_axis_tolerance" validate:"gt=0"`
	GeometricTables    bool    `mapstructure:"geometric_tables"`

	OCREnabled           bool    `mapstructure:"ocr_enabled"`
	OCRLanguage          string  `mapstructure:"ocr_language" validate:"required"`
	OCRDPI               float64 `mapstructure:"ocr_dpi" validate:"min=72,max=1200"`
	OCRMinNativeChars    int     `mapstructure:"ocr_min_native_chars" validate:"gte=0"`
	OCRPageMinConfidence float64 `mapstructure:"ocr_page_min_confidence" validate:"gte=0,lte=100"`
	OCRDedupTolerance    float64 `mapstructure:"ocr_dedup_tolerance" validate:"gte=0"`
	OCRMergeAdjacent     bool    `mapstructure:"ocr_merge_adjacent"`

	Consensus   bool          `mapstructure:"consensus"`
	PageTimeout time.Duration `mapstructure:"page_timeout" validate:"gt=0"`
	OCRTimeout  time.Duration `mapstructure:"ocr_timeout" validate:"gt=0"`
	Workers     int           `mapstructure:"workers" validate:"gte=0"`
	OutputMode  string        `mapstructure:"output_mode" validate:"oneof=percent px"`
	CacheDir    string        `mapstructure:"cache_dir"`
}

// DefaultExtraction mirrors extraction.DefaultOptions
func DefaultExtraction() Extraction {
	opts := extraction.DefaultOptions()
	return Extraction{
		RowTolerance:         opts.Tables.RowTolerance,
		MinZoneRows:          opts.Tables.MinZoneRows,
		GridEdgeEpsilon:      opts.Tables.EdgeEpsilon,
		GridTolerance:        opts.Tables.LineTolerance,
		RectWidthCoverage:    opts.Tables.RectWidthCoverage,
		RectHeightCoverage:   opts.Tables.RectHeightCoverage,
		LineAxisTolerance:    opts.Vector.AxisTolerance,
		GeometricTables:      opts.Tables.Geometric,
		OCREnabled:           opts.OCREnabled,
		OCRLanguage:          "eng",
		OCRDPI:               opts.OCRDPI,
		OCRMinNativeChars:    opts.OCRMinNativeChars,
		OCRPageMinConfidence: opts.OCR.PageMinConfidence,
		OCRDedupTolerance:    opts.OCR.DedupTolerance,
		OCRMergeAdjacent:     opts.OCR.MergeAdjacent,
		Consensus:            opts.Consensus,
		PageTimeout:          opts.PageTimeout,
		OCRTimeout:           opts.OCR.PassTimeout,
		Workers:              opts.Workers,
		OutputMode:           opts.Render.Positioning,
	}
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:         ModeStdio, // Default to stdio mode for MCP compatibility
		Host:         DefaultHost,
		Port:         DefaultPort,
		PDFDirectory: currentDir,
		MaxFileSize:  DefaultMaxFileSize,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		Format:       FormatJSON,
		Version:      "1.0.0",
		ServerName:   "faithful-pdf",
		Extraction:   DefaultExtraction(),
	}
}

// LoadFromFlags loads .env, then parses os.Args
func LoadFromFlags() (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()
	return Load(os.Args[1:])
}

// Load builds a configuration from defaults, the optional config file,
// FAITHFUL_PDF_* environment variables and args, in increasing priority.
func Load(args []string) (*Config, error) {
	// Check for version flag before parsing
	if err := checkVersionFlag(args); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	v := viper.New()
	fs := pflag.NewFlagSet("faithful-pdf", pflag.ContinueOnError)

	setupViperEnvironment(v, cfg)
	defineCommandLineFlags(fs, cfg)
	setupUsageMessage(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	bindFlagsToViper(v, fs)

	if file, _ := fs.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		cfg.ConfigFile = file
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// Expand paths if needed
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures the environment binding and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("rate_limit", cfg.RateLimit)
	v.SetDefault("dir", cfg.PDFDirectory)
	v.SetDefault("max_file_size", cfg.MaxFileSize)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("input", cfg.Input)
	v.SetDefault("format", cfg.Format)
	v.SetDefault("output", cfg.Output)

	// Every extraction key gets a default so AutomaticEnv can see it
	x := cfg.Extraction
	for key, value := range map[string]any{
		"row_tolerance":           x.RowTolerance,
		"min_zone_rows":           x.MinZoneRows,
		"grid_edge_epsilon":       x.GridEdgeEpsilon,
		"grid_tolerance":          x.GridTolerance,
		"rect_width_coverage":     x.RectWidthCoverage,
		"rect_height_coverage":    x.RectHeightCoverage,
		"line_axis_tolerance":     x.LineAxisTolerance,
		"geometric_tables":        x.GeometricTables,
		"ocr_enabled":             x.OCREnabled,
		"ocr_language":            x.OCRLanguage,
		"ocr_dpi":                 x.OCRDPI,
		"ocr_min_native_chars":    x.OCRMinNativeChars,
		"ocr_page_min_confidence": x.OCRPageMinConfidence,
		"ocr_dedup_tolerance":     x.OCRDedupTolerance,
		"ocr_merge_adjacent":      x.OCRMergeAdjacent,
		"consensus":               x.Consensus,
		"page_timeout":            x.PageTimeout,
		"ocr_timeout":             x.OCRTimeout,
		"workers":                 x.Workers,
		"output_mode":             x.OutputMode,
		"cache_dir":               x.CacheDir,
	} {
		v.SetDefault("extraction."+key, value)
	}
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("config", "", "Configuration file (yaml, toml or json)")
	fs.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for SSE over HTTP")
	fs.String("host", cfg.Host, "Server host address (server mode only)")
	fs.Int("port", cfg.Port, "Server port (server mode only)")
	fs.Float64("rate-limit", cfg.RateLimit, "Maximum extraction tool calls per second (0 = unlimited)")
	fs.String("dir", cfg.PDFDirectory, "Directory containing PDF files")
	fs.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-format", cfg.LogFormat, "Log format (console, json)")
	fs.String("log-file", cfg.LogFile, "Also write JSON logs to this rotated file")

	fs.StringP("input", "i", "", "Extract this PDF once and exit instead of serving")
	fs.StringP("format", "f", cfg.Format, "Output format of --input: json, html or markdown")
	fs.StringP("output", "o", "", "Write the --input result here instead of stdout")

	x := cfg.Extraction
	fs.Bool("consensus", x.Consensus, "Cross-check elements with every extraction method")
	fs.Bool("ocr", x.OCREnabled, "Read images and scanned pages with OCR")
	fs.String("ocr-lang", x.OCRLanguage, "Tesseract language")
	fs.Float64("ocr-dpi", x.OCRDPI, "Rasterization resolution of scanned pages")
	fs.Bool("geometric-tables", x.GeometricTables, "Detect unruled tables by column alignment")
	fs.Int("workers", x.Workers, "Pages processed at once (0 = number of CPUs)")
	fs.Duration("page-timeout", x.PageTimeout, "Time limit per page")
	fs.String("output-mode", x.OutputMode, "HTML positioning: percent or px")
	fs.String("cache-dir", x.CacheDir, "Directory of the result cache (empty disables it)")
}

// flagKeys maps flag names to configuration keys
var flagKeys = map[string]string{
	"mode":             "mode",
	"host":             "host",
	"port":             "port",
	"rate-limit":       "rate_limit",
	"dir":              "dir",
	"max-file-size":    "max_file_size",
	"log-level":        "log_level",
	"log-format":       "log_format",
	"log-file":         "log_file",
	"input":            "input",
	"format":           "format",
	"output":           "output",
	"consensus":        "extraction.consensus",
	"ocr":              "extraction.ocr_enabled",
	"ocr-lang":         "extraction.ocr_language",
	"ocr-dpi":          "extraction.ocr_dpi",
	"geometric-tables": "extraction.geometric_tables",
	"workers":          "extraction.workers",
	"page-timeout":     "extraction.page_timeout",
	"output-mode":      "extraction.output_mode",
	"cache-dir":        "extraction.cache_dir",
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper(v *viper.Viper, fs *pflag.FlagSet) {
	for flag, key := range flagKeys {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage(fs *pflag.FlagSet) {
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nfaithful-pdf - structural PDF extraction with faithful HTML reconstruction\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input leaflet.pdf --format html -o leaflet.html # one-shot extraction\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs                              # MCP over stdio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081         # MCP over SSE\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %s_MODE, %s_DIR, %s_LOG_LEVEL, ...\n", EnvPrefix, EnvPrefix, EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_EXTRACTION_ROW_TOLERANCE and the other extraction keys\n", EnvPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag(args []string) error {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && c.Port < 1 {
		return errors.New("port must be between 1 and 65535")
	}

	// The PDF directory is only required when serving
	if c.Input != "" {
		return nil
	}
	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Check if PDF directory exists, create if it doesn't
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	return nil
}

// ToOptions converts the configuration into pipeline options. One-shot
// extraction is not confined to the PDF directory.
func (c *Config) ToOptions() extraction.Options {
	x := c.Extraction
	opts := extraction.DefaultOptions()

	opts.Tables.RowTolerance = x.RowTolerance
	opts.Tables.MinZoneRows = x.MinZoneRows
	opts.Tables.EdgeEpsilon = x.GridEdgeEpsilon
	opts.Tables.LineTolerance = x.GridTolerance
	opts.Tables.RectWidthCoverage = x.RectWidthCoverage
	opts.Tables.RectHeightCoverage = x.RectHeightCoverage
	opts.Tables.Geometric = x.GeometricTables
	opts.Vector.AxisTolerance = x.LineAxisTolerance

	opts.OCREnabled = x.OCREnabled
	opts.OCRDPI = x.OCRDPI
	opts.OCRMinNativeChars = x.OCRMinNativeChars
	opts.OCR.PageMinConfidence = x.OCRPageMinConfidence
	opts.OCR.DedupTolerance = x.OCRDedupTolerance
	opts.OCR.MergeAdjacent = x.OCRMergeAdjacent
	opts.OCR.PassTimeout = x.OCRTimeout

	opts.Consensus = x.Consensus
	opts.PageTimeout = x.PageTimeout
	opts.Workers = x.Workers
	opts.Render.Positioning = render.Percent
	if x.OutputMode == render.Pixels {
		opts.Render.Positioning = render.Pixels
	}

	opts.MaxFileSize = c.MaxFileSize
	if c.Input == "" {
		opts.PDFDir = c.PDFDirectory
	}
	return opts
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, Consensus: %t, OCR: %t}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize, c.Extraction.Consensus, c.Extraction.OCREnabled)
}

// IsServerMode returns true if the server is running in SSE server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// IsOneShot reports whether a single file is extracted instead of serving
func (c *Config) IsOneShot() bool {
	return c.Input != ""
}
