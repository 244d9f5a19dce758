// Package manifest loads ordered photo lists for batch grouping.
package manifest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/photogroup/internal/grouping"
	"github.com/parquet-go/parquet-go"
)

// Entry is one row of a manifest. ID defaults to Path when empty.
type Entry struct {
	ID   string `json:"id" parquet:"id,optional"`
	Path string `json:"path" parquet:"path"`
}

// Loader reads a manifest file. The format is chosen by extension:
// .txt (one path per line), .json (an array of entries), .jsonl or .parquet.
type Loader struct {
	manifestPath string
}

// NewLoader creates a loader for the manifest at path.
func NewLoader(path string) *Loader {
	return &Loader{
		manifestPath: path,
	}
}

// Load returns the photos in file order. Relative paths are resolved
// against the manifest's directory.
func (l *Loader) Load() ([]grouping.Photo, error) {
	var (
		entries []Entry
		err     error
	)

	ext := strings.ToLower(filepath.Ext(l.manifestPath))
	switch ext {
	case ".txt", ".lst":
		entries, err = l.loadText()
	case ".jsonl":
		entries, err = l.loadJSONL()
	case ".json":
		entries, err = l.loadJSON()
	case ".parquet":
		entries, err = l.loadParquet()
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s (supported: .txt, .json, .jsonl, .parquet)", ext)
	}
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(l.manifestPath)
	photos := make([]grouping.Photo, 0, len(entries))
	for i, e := range entries {
		if e.Path == "" {
			return nil, fmt.Errorf("manifest entry %d has no path", i+1)
		}
		path := e.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		id := e.ID
		if id == "" {
			id = path
		}
		photos = append(photos, grouping.Photo{ID: id, Path: path})
	}

	slog.Debug("Loaded manifest", "path", l.manifestPath, "photos", len(photos))
	return photos, nil
}

func (l *Loader) loadText() ([]Entry, error) {
	file, err := os.Open(l.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, Entry{Path: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	return entries, nil
}

func (l *Loader) loadJSONL() ([]Entry, error) {
	file, err := os.Open(l.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading manifest: %w", err)
	}
	return entries, nil
}

func (l *Loader) loadJSON() ([]Entry, error) {
	data, err := os.ReadFile(l.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse JSON manifest: %w", err)
	}
	return entries, nil
}

func (l *Loader) loadParquet() ([]Entry, error) {
	file, err := os.Open(l.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Entry](pf)
	defer reader.Close()

	var entries []Entry
	rows := make([]Entry, 128)
	for {
		n, err := reader.Read(rows)
		entries = append(entries, rows[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	return entries, nil
}
