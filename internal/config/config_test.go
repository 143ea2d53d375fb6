package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/a3tai/faithful-pdf/internal/pdf/render"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeStdio, cfg.Mode)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "faithful-pdf", cfg.ServerName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)

	currentDir, _ := os.Getwd()
	assert.Equal(t, currentDir, cfg.PDFDirectory)

	x := cfg.Extraction
	assert.Equal(t, 8.0, x.RowTolerance)
	assert.Equal(t, 2, x.MinZoneRows)
	assert.Equal(t, 0.8, x.GridEdgeEpsilon)
	assert.Equal(t, 1.0, x.GridTolerance)
	assert.Equal(t, 0.6, x.RectWidthCoverage)
	assert.Equal(t, 0.4, x.RectHeightCoverage)
	assert.Equal(t, 0.5, x.LineAxisTolerance)
	assert.True(t, x.GeometricTables)
	assert.True(t, x.OCREnabled)
	assert.Equal(t, 300.0, x.OCRDPI)
	assert.Equal(t, 30, x.OCRMinNativeChars)
	assert.Equal(t, 60.0, x.OCRPageMinConfidence)
	assert.Equal(t, 5.0, x.OCRDedupTolerance)
	assert.True(t, x.OCRMergeAdjacent)
	assert.False(t, x.Consensus)
	assert.Equal(t, 45*time.Second, x.PageTimeout)
	assert.Equal(t, 20*time.Second, x.OCRTimeout)
	assert.Equal(t, 1, x.Workers)
	assert.Equal(t, render.Percent, x.OutputMode)
	assert.Empty(t, x.CacheDir)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid stdio", func(c *Config) {}, false},
		{"valid server", func(c *Config) { c.Mode = ModeServer }, false},
		{"invalid mode", func(c *Config) { c.Mode = "invalid" }, true},
		{"port too low in server mode", func(c *Config) { c.Mode = ModeServer; c.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Port = 70000 }, true},
		{"port ignored in stdio mode", func(c *Config) { c.Port = 0 }, false},
		{"empty PDF directory", func(c *Config) { c.PDFDirectory = "" }, true},
		{"empty PDF directory with input", func(c *Config) { c.PDFDirectory = ""; c.Input = "a.pdf" }, false},
		{"invalid log level", func(c *Config) { c.LogLevel = "invalid" }, true},
		{"invalid log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"invalid max file size", func(c *Config) { c.MaxFileSize = 0 }, true},
		{"invalid output format", func(c *Config) { c.Format = "pdf" }, true},
		{"invalid row tolerance", func(c *Config) { c.Extraction.RowTolerance = 0 }, true},
		{"invalid coverage", func(c *Config) { c.Extraction.RectWidthCoverage = 1.5 }, true},
		{"invalid dpi", func(c *Config) { c.Extraction.OCRDPI = 10 }, true},
		{"invalid confidence", func(c *Config) { c.Extraction.OCRPageMinConfidence = 120 }, true},
		{"invalid page timeout", func(c *Config) { c.Extraction.PageTimeout = 0 }, true},
		{"negative workers", func(c *Config) { c.Extraction.Workers = -1 }, true},
		{"invalid output mode", func(c *Config) { c.Extraction.OutputMode = "em" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.PDFDirectory = t.TempDir()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigValidate_CreatesDirectory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PDFDirectory = filepath.Join(t.TempDir(), "nested", "pdfs")

	require.NoError(t, cfg.Validate())
	info, err := os.Stat(cfg.PDFDirectory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigHelpers(t *testing.T) {
	cfg := &Config{Host: "192.168.1.1", Port: 9090, Mode: ModeServer, LogLevel: "debug"}
	assert.Equal(t, "192.168.1.1:9090", cfg.Address())
	assert.True(t, cfg.IsDebug())
	assert.True(t, cfg.IsServerMode())
	assert.False(t, cfg.IsStdioMode())
	assert.False(t, cfg.IsOneShot())
	assert.Contains(t, cfg.String(), "Mode: server")

	cfg.Input = "a.pdf"
	assert.True(t, cfg.IsOneShot())
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load([]string{"--dir=" + dir})
	require.NoError(t, err)

	assert.Equal(t, ModeStdio, cfg.Mode)
	assert.Equal(t, dir, cfg.PDFDirectory)
	assert.Equal(t, DefaultExtraction(), cfg.Extraction)
}

func TestLoad_Flags(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, c *Config)
	}{
		{
			name: "server mode with host and port",
			args: []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, ModeServer, c.Mode)
				assert.Equal(t, "0.0.0.0:9090", c.Address())
			},
		},
		{
			name: "logging",
			args: []string{"--log-level=debug", "--log-format=json", "--log-file=/tmp/x.log"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "debug", c.LogLevel)
				assert.Equal(t, "json", c.LogFormat)
				assert.Equal(t, "/tmp/x.log", c.LogFile)
			},
		},
		{
			name: "one-shot extraction",
			args: []string{"-i", "leaflet.pdf", "-f", "markdown", "-o", "out.md"},
			check: func(t *testing.T, c *Config) {
				assert.True(t, c.IsOneShot())
				assert.Equal(t, "leaflet.pdf", c.Input)
				assert.Equal(t, FormatMarkdown, c.Format)
				assert.Equal(t, "out.md", c.Output)
			},
		},
		{
			name: "extraction flags",
			args: []string{"--consensus", "--ocr=false", "--workers=4", "--page-timeout=10s", "--output-mode=px", "--geometric-tables=false"},
			check: func(t *testing.T, c *Config) {
				assert.True(t, c.Extraction.Consensus)
				assert.False(t, c.Extraction.OCREnabled)
				assert.Equal(t, 4, c.Extraction.Workers)
				assert.Equal(t, 10*time.Second, c.Extraction.PageTimeout)
				assert.Equal(t, "px", c.Extraction.OutputMode)
				assert.False(t, c.Extraction.GeometricTables)
			},
		},
		{
			name: "max file size",
			args: []string{"--max-file-size=2048"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, int64(2048), c.MaxFileSize)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(append([]string{"--dir=" + dir}, tt.args...))
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"invalid mode", []string{"--mode=invalid"}},
		{"invalid log level", []string{"--log-level=loud"}},
		{"unknown flag", []string{"--no-such-flag"}},
		{"bad duration", []string{"--page-timeout=soon"}},
		{"missing config file", []string{"--config=/nonexistent/faithful.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(append([]string{"--dir=" + t.TempDir()}, tt.args...))
			assert.Error(t, err)
		})
	}
}

func TestLoad_Version(t *testing.T) {
	for _, arg := range []string{"--version", "-version", "-v"} {
		_, err := Load([]string{arg})
		assert.ErrorIs(t, err, ErrVersionRequested)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("FAITHFUL_PDF_MODE", "server")
	t.Setenv("FAITHFUL_PDF_PORT", "9191")
	t.Setenv("FAITHFUL_PDF_EXTRACTION_ROW_TOLERANCE", "4.5")
	t.Setenv("FAITHFUL_PDF_EXTRACTION_CONSENSUS", "true")
	t.Setenv("FAITHFUL_PDF_EXTRACTION_OCR_TIMEOUT", "5s")

	cfg, err := Load([]string{"--dir=" + t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, ModeServer, cfg.Mode)
	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, 4.5, cfg.Extraction.RowTolerance)
	assert.True(t, cfg.Extraction.Consensus)
	assert.Equal(t, 5*time.Second, cfg.Extraction.OCRTimeout)
}

func TestLoad_FlagBeatsEnvironment(t *testing.T) {
	t.Setenv("FAITHFUL_PDF_LOG_LEVEL", "warn")
	cfg, err := Load([]string{"--dir=" + t.TempDir(), "--log-level=error"})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "faithful.yaml")
	content, err := yaml.Marshal(map[string]any{
		"log_level":  "debug",
		"rate_limit": 2.5,
		"extraction": map[string]any{
			"min_zone_rows": 3,
			"ocr_dpi":       200,
			"cache_dir":     "/tmp/faithful-cache",
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load([]string{"--dir=" + dir, "--config=" + path})
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, 3, cfg.Extraction.MinZoneRows)
	assert.Equal(t, 200.0, cfg.Extraction.OCRDPI)
	assert.Equal(t, "/tmp/faithful-cache", cfg.Extraction.CacheDir)
	assert.Equal(t, 8.0, cfg.Extraction.RowTolerance)
}

func TestToOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PDFDirectory = "/data/pdfs"
	cfg.MaxFileSize = 4096
	cfg.Extraction.RowTolerance = 6
	cfg.Extraction.MinZoneRows = 3
	cfg.Extraction.GridTolerance = 2
	cfg.Extraction.LineAxisTolerance = 0.25
	cfg.Extraction.GeometricTables = false
	cfg.Extraction.OCRPageMinConfidence = 70
	cfg.Extraction.OCRTimeout = 3 * time.Second
	cfg.Extraction.Consensus = true
	cfg.Extraction.Workers = 0
	cfg.Extraction.OutputMode = render.Pixels

	opts := cfg.ToOptions()
	assert.Equal(t, 6.0, opts.Tables.RowTolerance)
	assert.Equal(t, 3, opts.Tables.MinZoneRows)
	assert.Equal(t, 2.0, opts.Tables.LineTolerance)
	assert.Equal(t, 0.25, opts.Vector.AxisTolerance)
	assert.False(t, opts.Tables.Geometric)
	assert.Equal(t, 70.0, opts.OCR.PageMinConfidence)
	assert.Equal(t, 3*time.Second, opts.OCR.PassTimeout)
	assert.True(t, opts.Consensus)
	assert.Zero(t, opts.Workers)
	assert.Equal(t, render.Pixels, opts.Render.Positioning)
	assert.Equal(t, int64(4096), opts.MaxFileSize)
	assert.Equal(t, "/data/pdfs", opts.PDFDir)

	cfg.Input = "/elsewhere/a.pdf"
	assert.Empty(t, cfg.ToOptions().PDFDir)
}
