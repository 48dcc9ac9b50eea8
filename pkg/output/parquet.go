package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
	"github.com/velemoonkon/subscan/pkg/recon"
)

// ParquetRow is a flattened representation of a scanned subdomain for Parquet storage
// Parquet works best with flat schemas, so ports are stored both as a list and a count
type ParquetRow struct {
	Domain        string `parquet:"domain,zstd"`
	ParentDomain  string `parquet:"parent_domain,zstd,dict"`
	OpenPortCount int32  `parquet:"open_port_count"`

	// Open ports (stored as comma-separated for simplicity)
	OpenPorts string `parquet:"open_ports,zstd"`
}

// ParquetWriter writes scan results to a Parquet file
type ParquetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[ParquetRow]
	count  int
}

// NewParquetWriter creates a Parquet writer with optimized settings
func NewParquetWriter(filename string) (*ParquetWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	// Configure Parquet writer with compression and optimizations
	writer := parquet.NewGenericWriter[ParquetRow](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("subscan", "1.0.0", "go"),
	)

	return &ParquetWriter{
		file:   file,
		writer: writer,
	}, nil
}

// Write converts a subdomain to a flat ParquetRow and writes it
func (w *ParquetWriter) Write(sub recon.Subdomain) error {
	row := subdomainToParquetRow(sub)

	if _, err := w.writer.Write([]ParquetRow{row}); err != nil {
		return fmt.Errorf("failed to write parquet row: %w", err)
	}

	w.count++
	return nil
}

// Flush forces buffered data to be written
func (w *ParquetWriter) Flush() error {
	return w.writer.Flush()
}

// Close finalizes and closes the Parquet file
func (w *ParquetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Count returns the number of rows written
func (w *ParquetWriter) Count() int {
	return w.count
}

// subdomainToParquetRow flattens a subdomain into a ParquetRow
func subdomainToParquetRow(sub recon.Subdomain) ParquetRow {
	ports := sub.OpenPortNumbers()
	row := ParquetRow{
		Domain:        sub.Domain,
		ParentDomain:  parentDomain(sub.Domain),
		OpenPortCount: int32(len(ports)),
	}

	if len(ports) > 0 {
		parts := make([]string, len(ports))
		for i, p := range ports {
			parts[i] = strconv.Itoa(int(p))
		}
		row.OpenPorts = strings.Join(parts, ",")
	}

	return row
}

// parentDomain returns the name one label up, or "" for a single label
func parentDomain(domain string) string {
	if _, parent, ok := strings.Cut(domain, "."); ok {
		return parent
	}
	return ""
}
