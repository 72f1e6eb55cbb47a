package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/IshaanNene/chatprobe/internal/config"
)

const (
	imagesDir = "images"
	dataDir   = "csv_files"

	// FileTimeLayout is the timestamp format used in output file names.
	FileTimeLayout = "20060102-150405"
)

// Layout is the on-disk structure of one run's output:
//
//	<output_dir>/[YYYY-MM-DD/]images/<id>.png
//	<output_dir>/[YYYY-MM-DD/]csv_files/<prefix>-<timestamp>.<ext>
type Layout struct {
	Root   string
	Images string
	Data   string
	prefix string
	now    time.Time
}

// NewLayout creates the output directories for a run started at now.
// Existing directories are reused.
func NewLayout(cfg *config.StorageConfig, now time.Time) (*Layout, error) {
	root := cfg.OutputDir
	if cfg.DateFolders {
		root = filepath.Join(root, now.Format("2006-01-02"))
	}

	l := &Layout{
		Root:   root,
		Images: filepath.Join(root, imagesDir),
		Data:   filepath.Join(root, dataDir),
		prefix: cfg.FilePrefix,
		now:    now,
	}
	for _, dir := range []string{l.Images, l.Data} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	return l, nil
}

// FilePath returns the data file path for the given extension.
func (l *Layout) FilePath(ext string) string {
	name := l.now.Format(FileTimeLayout) + "." + ext
	if l.prefix != "" {
		name = l.prefix + "-" + name
	}
	return filepath.Join(l.Data, name)
}
