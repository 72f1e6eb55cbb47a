package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/chatprobe/internal/types"
)

// --- JSON Storage ---

// JSONStorage writes records as a JSON array to a file.
type JSONStorage struct {
	path   string
	recs   []*types.Record
	mu     sync.Mutex
	logger *slog.Logger
}

// NewJSONStorage creates a new JSON file storage.
func NewJSONStorage(outputPath string, logger *slog.Logger) (*JSONStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return &JSONStorage{
		path:   outputPath,
		recs:   make([]*types.Record, 0),
		logger: logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

func (s *JSONStorage) Store(recs []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, recs...)
	s.logger.Debug("records buffered", "count", len(recs), "total", len(s.recs))
	return nil
}

func (s *JSONStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("create output file: %w", err)}
	}

	output := make([]map[string]any, len(s.recs))
	for i, rec := range s.recs {
		output[i] = rec.ToMap()
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		f.Close()
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode JSON: %w", err)}
	}
	if err := f.Close(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("close output file: %w", err)}
	}

	s.logger.Info("JSON written", "path", s.path, "records", len(s.recs))
	return nil
}

// --- JSONL Storage ---

// JSONLStorage writes records as newline-delimited JSON (one object per line).
type JSONLStorage struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage creates a new JSONL file storage (streaming writes).
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	return &JSONLStorage{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Store(recs []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		if err := s.enc.Encode(rec.ToMap()); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode JSONL: %w", err)}
		}
		s.count++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("close output file: %w", err)}
	}
	s.logger.Info("JSONL written", "path", s.path, "records", s.count)
	return nil
}

// --- CSV Storage ---

// CSVStorage writes records as CSV rows under the fixed types.Columns header.
// The header is written on creation so an interrupted run still leaves a
// well-formed file.
type CSVStorage struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVStorage creates a new CSV file storage.
func NewCSVStorage(outputPath string, logger *slog.Logger) (*CSVStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(types.Columns()); err != nil {
		f.Close()
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("write CSV header: %w", err)
	}

	return &CSVStorage{
		path:   outputPath,
		file:   f,
		writer: w,
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

func (s *CSVStorage) Store(recs []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		if err := s.writer.Write(rec.Row()); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("write CSV row: %w", err)}
		}
		s.count++
	}

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	return nil
}

func (s *CSVStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	err := errors.Join(s.writer.Error(), s.file.Close())
	s.file = nil
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("finish CSV: %w", err)}
	}
	s.logger.Info("CSV written", "path", s.path, "records", s.count)
	return nil
}

// Path returns the file being written.
func (s *CSVStorage) Path() string { return s.path }

// NewFileStorage creates the appropriate file-based storage by type, named
// by layout.
func NewFileStorage(storageType string, layout *Layout, logger *slog.Logger) (Storage, error) {
	switch storageType {
	case "json":
		return NewJSONStorage(layout.FilePath("json"), logger)
	case "jsonl":
		return NewJSONLStorage(layout.FilePath("jsonl"), logger)
	case "csv":
		return NewCSVStorage(layout.FilePath("csv"), logger)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownStorage, storageType)
	}
}
