// Package buffer writes each new summary as a markdown file with YAML front
// matter, so digests can be read, synced or fed to other tools without
// touching the database. Files are written atomically (write .tmp then
// rename) so a reader never sees a partial file.
package buffer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/rivalwatch/horosafe"
)

// Metadata is the front matter of a digest file.
type Metadata struct {
	ID             string    `yaml:"id"`
	CompetitorID   string    `yaml:"competitor_id"`
	CompetitorName string    `yaml:"competitor_name"`
	Title          string    `yaml:"title"`
	Source         string    `yaml:"source"`
	SourceType     string    `yaml:"source_type"`
	Provider       string    `yaml:"provider,omitempty"`
	ChangeType     string    `yaml:"change_type,omitempty"`
	Changes        []string  `yaml:"changes,omitempty"`
	PubDate        time.Time `yaml:"pub_date,omitempty"`
	Date           time.Time `yaml:"date"`
}

// Writer deposits digest files into one directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer targeting dir, created on first write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the target directory.
func (w *Writer) Dir() string { return w.dir }

// Write creates <competitor>_<id>.md holding meta and text and returns its
// path.
func (w *Writer) Write(ctx context.Context, meta Metadata, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if meta.ID == "" {
		return "", fmt.Errorf("buffer: metadata without id")
	}
	if err := horosafe.ValidateIdentifier(meta.CompetitorID); err != nil {
		return "", fmt.Errorf("buffer: competitor id: %w", err)
	}
	target, err := horosafe.SafePath(w.dir, meta.CompetitorID+"_"+meta.ID+".md")
	if err != nil {
		return "", fmt.Errorf("buffer: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("buffer: mkdir %s: %w", w.dir, err)
	}

	front, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("buffer: marshal front matter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(front)
	buf.WriteString("---\n\n")
	buf.WriteString(text)
	if text != "" && text[len(text)-1] != '\n' {
		buf.WriteByte('\n')
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("buffer: write tmp: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("buffer: rename: %w", err)
	}
	return target, nil
}
