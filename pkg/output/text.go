package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/velemoonkon/subscan/pkg/recon"
)

// TextWriter writes results in the plain listing format:
//
//	api.example.com:
//	443
//	8080
//
// Each subdomain is followed by its open ports in ascending order, one per
// line, and a blank line. A subdomain without open ports prints only its name.
type TextWriter struct {
	file   *os.File
	writer *bufio.Writer
	count  int
}

// NewTextWriter creates a text writer to the specified file
// Use "-" for stdout
func NewTextWriter(filename string) (*TextWriter, error) {
	file, err := openOutput(filename)
	if err != nil {
		return nil, err
	}

	return &TextWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
	}, nil
}

// NewTextWriterFromWriter creates a text writer from an existing io.Writer
func NewTextWriterFromWriter(w io.Writer) *TextWriter {
	return &TextWriter{
		writer: bufio.NewWriterSize(w, 64*1024),
	}
}

// Write writes one subdomain block
func (w *TextWriter) Write(sub recon.Subdomain) error {
	buf := make([]byte, 0, len(sub.Domain)+2+6*len(sub.OpenPorts)+1)
	buf = append(buf, sub.Domain...)
	buf = append(buf, ':', '\n')
	for _, p := range sub.OpenPortNumbers() {
		buf = strconv.AppendUint(buf, uint64(p), 10)
		buf = append(buf, '\n')
	}
	buf = append(buf, '\n')

	if _, err := w.writer.Write(buf); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	w.count++
	return w.writer.Flush()
}

// Flush forces any buffered data to be written
func (w *TextWriter) Flush() error {
	return w.writer.Flush()
}

// Close flushes and closes the writer
func (w *TextWriter) Close() error {
	return closeOutput(w.writer, w.file)
}

// Count returns the number of subdomains written
func (w *TextWriter) Count() int {
	return w.count
}
