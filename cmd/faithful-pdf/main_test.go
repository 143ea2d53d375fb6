package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/faithful-pdf/internal/config"
	"github.com/a3tai/faithful-pdf/internal/pdf/fixtures"
)

func TestPrintVersion(t *testing.T) {
	oldVersion, oldBuildTime, oldGitCommit := version, buildTime, gitCommit
	defer func() { version, buildTime, gitCommit = oldVersion, oldBuildTime, oldGitCommit }()

	version = "1.2.3"
	buildTime = "2025-01-01_10:30:00"
	gitCommit = "abc123"

	var buf bytes.Buffer
	printVersion(&buf)
	for _, want := range []string{
		"Faithful PDF",
		"Version: 1.2.3",
		"Build Time: 2025-01-01_10:30:00",
		"Git Commit: abc123",
		"Built with:",
	} {
		assert.Contains(t, buf.String(), want)
	}
}

func writeFixture(t *testing.T, dir string) string {
	t.Helper()
	data, err := fixtures.Build(fixtures.Page{
		Texts: []fixtures.Text{{X: 72, Y: 84, Size: 12, Str: "Hello World"}},
	})
	require.NoError(t, err)
	path := filepath.Join(dir, "hello.pdf")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func oneShotConfig(t *testing.T, input, format string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.PDFDirectory = t.TempDir()
	cfg.Input = input
	cfg.Format = format
	cfg.LogLevel = "error"
	cfg.Extraction.OCREnabled = false
	return cfg
}

func TestRun_OneShot(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir)

	t.Run("json to stdout", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, run(context.Background(), oneShotConfig(t, input, config.FormatJSON), &stdout, &stderr))

		var res map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
		assert.Equal(t, true, res["extracted"])
		assert.Contains(t, res["text"], "Hello World")
		assert.Contains(t, stderr.String(), input)
		assert.Contains(t, stderr.String(), "pages 1")
	})

	t.Run("html to stdout", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		require.NoError(t, run(context.Background(), oneShotConfig(t, input, config.FormatHTML), &stdout, &stderr))
		assert.Contains(t, stdout.String(), "<html")
		assert.Contains(t, stdout.String(), "Hello World")
	})

	t.Run("markdown to file", func(t *testing.T) {
		cfg := oneShotConfig(t, input, config.FormatMarkdown)
		cfg.Output = filepath.Join(t.TempDir(), "hello.md")

		var stdout, stderr bytes.Buffer
		require.NoError(t, run(context.Background(), cfg, &stdout, &stderr))
		assert.Empty(t, stdout.String())

		data, err := os.ReadFile(cfg.Output)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Hello World")
	})

	t.Run("unreadable document", func(t *testing.T) {
		broken := filepath.Join(dir, "broken.pdf")
		require.NoError(t, os.WriteFile(broken, []byte("not a pdf at all"), 0o644))

		var stdout, stderr bytes.Buffer
		err := run(context.Background(), oneShotConfig(t, broken, config.FormatHTML), &stdout, &stderr)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extraction failed")
		assert.Contains(t, stdout.String(), "pdf-error")
		assert.Contains(t, stderr.String(), "not extracted")
	})

	t.Run("missing input", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		err := run(context.Background(), oneShotConfig(t, filepath.Join(dir, "missing.pdf"), config.FormatJSON), &stdout, &stderr)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})
}

func TestRun_WithCache(t *testing.T) {
	input := writeFixture(t, t.TempDir())
	cfg := oneShotConfig(t, input, config.FormatJSON)
	cfg.Extraction.CacheDir = t.TempDir()

	for i := 0; i < 2; i++ {
		var stdout, stderr bytes.Buffer
		require.NoError(t, run(context.Background(), cfg, &stdout, &stderr))
		assert.Contains(t, stdout.String(), "Hello World")
	}
}

func TestRun_InvalidLogFormat(t *testing.T) {
	cfg := oneShotConfig(t, "unused.pdf", config.FormatJSON)
	cfg.LogFormat = "xml"

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), cfg, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create logger")
}

func TestRun_ServerStopsOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PDFDirectory = t.TempDir()
	cfg.LogLevel = "error"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	assert.NoError(t, run(ctx, cfg, &stdout, &stderr))
}
