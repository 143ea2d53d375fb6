package mcp

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/a3tai/faithful-pdf/internal/pdf/security"
)

// FileInfo describes one PDF found in a directory
type FileInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// SearchResult is the result of a directory search
type SearchResult struct {
	Files       []FileInfo `json:"files"`
	TotalCount  int        `json:"total_count"`
	Directory   string     `json:"directory"`
	SearchQuery string     `json:"search_query,omitempty"`
	Truncated   bool       `json:"truncated,omitempty"`
}

// searchDirectory lists the PDFs under directory whose names match query.
// Files outside root, empty files and files above maxFileSize are skipped.
func searchDirectory(root, directory, query string, maxFileSize int64, limit int) (*SearchResult, error) {
	if directory == "" {
		return nil, fmt.Errorf("directory cannot be empty")
	}
	absDirectory, err := filepath.Abs(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory path: %w", err)
	}
	if info, err := os.Stat(absDirectory); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("directory does not exist: %s", directory)
	}

	paths, err := security.NewRoot(root)
	if err != nil {
		return nil, err
	}
	if err := paths.Check(absDirectory); err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	result := &SearchResult{Files: []FileInfo{}, Directory: absDirectory, SearchQuery: query}

	err = filepath.WalkDir(absDirectory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // keep walking past unreadable entries
		}
		if within, werr := paths.Contains(path); werr != nil || !within {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".pdf") {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() == 0 || (maxFileSize > 0 && info.Size() > maxFileSize) {
			return nil //nolint:nilerr // unreadable or unusable files are skipped
		}
		if !matchesQuery(d.Name(), q) {
			return nil
		}
		if limit > 0 && len(result.Files) >= limit {
			result.Truncated = true
			return filepath.SkipAll
		}
		result.Files = append(result.Files, FileInfo{
			Path:         path,
			Name:         d.Name(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format("2006-01-02 15:04:05"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory: %w", err)
	}

	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })
	result.TotalCount = len(result.Files)
	return result, nil
}

// matchesQuery matches a lowercased query against a file name, by
// substring or by all query words occurring among the name's words
func matchesQuery(filename, query string) bool {
	if query == "" {
		return true
	}
	name := strings.TrimSuffix(strings.ToLower(filename), ".pdf")
	if strings.Contains(name, query) {
		return true
	}

	words := splitWords(name)
	for _, qw := range splitWords(query) {
		found := false
		for _, w := range words {
			if strings.Contains(w, qw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
