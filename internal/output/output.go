// Package output encodes captured images and delivers them to files or
// streams.
package output

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/bryanchriswhite/shadowcap/internal/logger"
)

// Output defines where a finished capture goes. This allows us to swap
// between a file on disk, stdout and an HTTP response.
type Output interface {
	// Write encodes and delivers one image
	Write(img *image.NRGBA) error

	// Name returns a human-readable name for this output
	Name() string
}

// Config holds encoding settings common to all outputs
type Config struct {
	Format  Format
	Quality int
}

// FileOutput writes captures to a file
type FileOutput struct {
	path   string
	config Config
}

// NewFileOutput creates a file output. An empty format is taken from the
// path's extension.
func NewFileOutput(path string, config Config) *FileOutput {
	if config.Format == "" {
		config.Format = FormatFromPath(path)
	}
	return &FileOutput{path: path, config: config}
}

// Path returns the destination path
func (f *FileOutput) Path() string {
	return f.path
}

func (f *FileOutput) Name() string {
	return "file " + f.path
}

// Write encodes img to a temporary file next to the destination and renames
// it into place
func (f *FileOutput) Write(img *image.NRGBA) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".shadowcap-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := Encode(bw, img, f.config.Format, f.config.Quality); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", f.config.Format, err)
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}

	logger.WithComponent("output").Info().
		Str("path", f.path).
		Str("format", string(f.config.Format)).
		Int("width", img.Rect.Dx()).
		Int("height", img.Rect.Dy()).
		Msg("Capture saved")
	return nil
}

// WriterOutput encodes captures onto a stream such as stdout or an HTTP
// response
type WriterOutput struct {
	w      io.Writer
	name   string
	config Config
}

// NewWriterOutput creates a stream output
func NewWriterOutput(w io.Writer, name string, config Config) *WriterOutput {
	if config.Format == "" {
		config.Format = PNG
	}
	return &WriterOutput{w: w, name: name, config: config}
}

func (o *WriterOutput) Name() string {
	return o.name
}

func (o *WriterOutput) Write(img *image.NRGBA) error {
	if err := Encode(o.w, img, o.config.Format, o.config.Quality); err != nil {
		return fmt.Errorf("failed to encode %s: %w", o.config.Format, err)
	}
	return nil
}
