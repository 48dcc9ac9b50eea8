package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/velemoonkon/subscan/pkg/recon"
)

// ResultWriter is implemented by every output format
type ResultWriter interface {
	Write(sub recon.Subdomain) error
	Close() error
	Count() int
}

// Formats accepted by New
const (
	FormatText    = "text"
	FormatJSONL   = "jsonl"
	FormatParquet = "parquet"
)

// New creates a writer for format. Parquet needs a real file, not stdout.
func New(format, filename string) (ResultWriter, error) {
	switch format {
	case "", FormatText:
		return NewTextWriter(filename)
	case FormatJSONL, "json":
		return NewWriter(filename)
	case FormatParquet:
		if filename == "" || filename == "-" {
			return nil, fmt.Errorf("parquet output requires a file (-o)")
		}
		return NewParquetWriter(filename)
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, jsonl or parquet)", format)
	}
}

// jsonRecord is the JSONL line layout. Ports are plain numbers in
// ascending order.
type jsonRecord struct {
	Domain    string   `json:"domain"`
	OpenPorts []uint16 `json:"open_ports"`
}

// Writer writes scan results as JSONL (JSON Lines) - one JSON object per line
// This format is ideal for streaming, piping to jq, and processing large datasets
type Writer struct {
	file   *os.File
	writer *bufio.Writer
	count  int
}

// NewWriter creates a JSONL writer to the specified file
// Use "-" for stdout
func NewWriter(filename string) (*Writer, error) {
	file, err := openOutput(filename)
	if err != nil {
		return nil, err
	}

	return &Writer{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024), // 64KB buffer
	}, nil
}

// NewWriterFromWriter creates a JSONL writer from an existing io.Writer
// Useful for testing or custom output destinations
func NewWriterFromWriter(w io.Writer) *Writer {
	return &Writer{
		writer: bufio.NewWriterSize(w, 64*1024),
	}
}

// Write writes a single scan result as a JSON line
func (w *Writer) Write(sub recon.Subdomain) error {
	data, err := json.Marshal(jsonRecord{Domain: sub.Domain, OpenPorts: sub.OpenPortNumbers()})
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}

	w.count++

	// Flush every 100 results for responsive output
	if w.count%100 == 0 {
		return w.writer.Flush()
	}

	return nil
}

// Flush forces any buffered data to be written
func (w *Writer) Flush() error {
	return w.writer.Flush()
}

// Close flushes and closes the writer
func (w *Writer) Close() error {
	return closeOutput(w.writer, w.file)
}

// Count returns the number of results written
func (w *Writer) Count() int {
	return w.count
}

// openOutput opens filename for writing; "-" and "" mean stdout
func openOutput(filename string) (*os.File, error) {
	if filename == "-" || filename == "" {
		return os.Stdout, nil
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, nil
}

// closeOutput flushes w and closes file unless it is stdout
func closeOutput(w *bufio.Writer, file *os.File) error {
	if err := w.Flush(); err != nil {
		return err
	}

	// Don't close stdout
	if file != nil && file != os.Stdout {
		return file.Close()
	}

	return nil
}
