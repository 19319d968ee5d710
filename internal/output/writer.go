// Package output writes the de-identified artifacts: one text report per
// document, named by pseudonym, plus a batch-level metadata set in JSON or
// parquet. All file writes go through a temp file and rename so consumers
// never observe a partial artifact.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// ReportWriter writes de-identified report text into the output directory.
type ReportWriter struct {
	dir    string
	logger *zap.Logger
}

// NewReportWriter creates a writer targeting dir, creating it as needed.
func NewReportWriter(dir string, logger *zap.Logger) (*ReportWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &ReportWriter{dir: dir, logger: logger}, nil
}

// Write stores text as <pseudonymID>.txt and returns the artifact path.
func (w *ReportWriter) Write(pseudonymID, text string) (string, error) {
	path := filepath.Join(w.dir, pseudonymID+".txt")
	if err := atomicWrite(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report artifact: %w", err)
	}

	w.logger.Debug("report artifact written",
		zap.String("document_id", pseudonymID),
		zap.Int("bytes", len(text)),
	)
	return path, nil
}

// MetadataWriter serializes the batch metadata set.
type MetadataWriter struct {
	format string // json or parquet
	logger *zap.Logger
}

// NewMetadataWriter creates a writer for the given format ("json" or
// "parquet").
func NewMetadataWriter(format string, logger *zap.Logger) (*MetadataWriter, error) {
	if format != "json" && format != "parquet" {
		return nil, fmt.Errorf("unsupported metadata format: %s", format)
	}
	return &MetadataWriter{format: format, logger: logger}, nil
}

// Write serializes records to path in the configured format.
func (w *MetadataWriter) Write(records []MetadataRecord, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	var err error
	switch w.format {
	case "parquet":
		err = writeParquet(records, path)
	default:
		err = writeJSON(records, path)
	}
	if err != nil {
		return err
	}

	w.logger.Info("metadata set written",
		zap.String("path", path),
		zap.String("format", w.format),
		zap.Int("records", len(records)),
	)
	return nil
}

func writeJSON(records []MetadataRecord, path string) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := atomicWrite(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

func writeParquet(records []MetadataRecord, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".metadata-*.parquet")
	if err != nil {
		return fmt.Errorf("failed to create metadata temp file: %w", err)
	}
	tmpName := tmp.Name()

	writer := parquet.NewWriter(tmp, parquet.SchemaOf(MetadataRecord{}))
	for i := range records {
		if err := writer.Write(&records[i]); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("failed to write parquet row: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
