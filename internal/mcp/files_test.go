package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesQuery(t *testing.T) {
	tests := []struct {
		filename string
		query    string
		want     bool
	}{
		{"report.pdf", "", true},
		{"Annual-Report-2023.pdf", "report", true},
		{"Annual-Report-2023.pdf", "2023 annual", true},
		{"Annual-Report-2023.pdf", "annual 2024", false},
		{"invoice_0042.pdf", "invoice 42", true},
		{"invoice_0042.pdf", "receipt", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename+"/"+tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesQuery(tt.filename, tt.query))
		})
	}
}

func TestSearchDirectory(t *testing.T) {
	root := t.TempDir()
	write := func(rel string, size int) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	}
	write("a.pdf", 10)
	write("b.PDF", 10)
	write("notes.txt", 10)
	write("empty.pdf", 0)
	write("huge.pdf", 2048)
	write("nested/c.pdf", 10)

	t.Run("filters and sorts", func(t *testing.T) {
		res, err := searchDirectory(root, root, "", 1024, 0)
		require.NoError(t, err)
		var names []string
		for _, f := range res.Files {
			names = append(names, f.Name)
		}
		assert.Equal(t, []string{"a.pdf", "b.PDF", "c.pdf"}, names)
		assert.Equal(t, 3, res.TotalCount)
		assert.False(t, res.Truncated)
	})

	t.Run("limit truncates", func(t *testing.T) {
		res, err := searchDirectory(root, root, "", 1024, 2)
		require.NoError(t, err)
		assert.Len(t, res.Files, 2)
		assert.True(t, res.Truncated)
	})

	t.Run("subdirectory", func(t *testing.T) {
		res, err := searchDirectory(root, filepath.Join(root, "nested"), "", 0, 0)
		require.NoError(t, err)
		require.Len(t, res.Files, 1)
		assert.Equal(t, "c.pdf", res.Files[0].Name)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := searchDirectory(root, filepath.Join(root, "missing"), "", 0, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := searchDirectory(root, "", "", 0, 0)
		require.Error(t, err)
	})
}
