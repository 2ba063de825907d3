package definitions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/artpar/caas/domain/definition"
	"github.com/artpar/caas/ports"
)

// FileLoader loads definition documents from files matched by glob
// patterns such as "definitions/**/*.yaml".
type FileLoader struct {
	patterns []string
	logger   zerolog.Logger
}

// NewFileLoader creates a loader for the given patterns.
func NewFileLoader(patterns []string, logger zerolog.Logger) *FileLoader {
	return &FileLoader{
		patterns: patterns,
		logger:   logger.With().Str("component", "definition_loader").Logger(),
	}
}

// Files returns the matched files in a stable order.
func (l *FileLoader) Files() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range l.patterns {
		if !doublestar.ValidatePathPattern(filepath.ToSlash(pattern)) {
			return nil, fmt.Errorf("invalid definition pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			if _, ok := FormatOf(m); !ok || seen[m] {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Load reads and decodes every matched file.
// A document without a name is named after its file.
func (l *FileLoader) Load(ctx context.Context) ([]definition.Document, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}

	docs := make([]definition.Document, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		l.logger.Debug().Str("file", path).Str("definition", doc.Name).Msg("definition file loaded")
		docs = append(docs, doc)
	}
	return docs, nil
}

// Dirs returns the directories to watch for the configured patterns.
func (l *FileLoader) Dirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, pattern := range l.patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		dir := filepath.FromSlash(base)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs
}

// ReadFile decodes one definition file.
func ReadFile(path string) (definition.Document, error) {
	format, ok := FormatOf(path)
	if !ok {
		return definition.Document{}, fmt.Errorf("%s: unknown definition format", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return definition.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Decode(format, data)
	if err != nil {
		return definition.Document{}, fmt.Errorf("%s: %w", path, err)
	}
	if doc.Name == "" {
		base := filepath.Base(path)
		doc.Name = base[:len(base)-len(filepath.Ext(base))]
	}
	return doc, nil
}

var _ ports.DefinitionLoader = (*FileLoader)(nil)
