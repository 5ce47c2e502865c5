package components

import (
	"os"
	"path/filepath"

	"github.com/datamunge/taxipipe/file"
	"github.com/datamunge/taxipipe/logger"
	"github.com/datamunge/taxipipe/stream"
	"github.com/datamunge/taxipipe/tripdata"
)

type ParquetNormalizeConfig struct {
	Log           logger.Logger
	Name          string
	RawPath       string // raw artifact as fetched from the source.
	CanonicalPath string // gzip parquet artifact with canonical column names.
}

// NormalizeParquet turns the raw artifact into the canonical one: columns are
// renamed to the warehouse layout and the result is written as gzip parquet.
// When the canonical artifact already exists it is read back and reused.
// The raw artifact is removed only after the canonical file is durably in place.
func NormalizeParquet(cfg *ParquetNormalizeConfig) (f *stream.Frame, reused bool, err error) {
	if cfg.RawPath == "" || cfg.CanonicalPath == "" {
		cfg.Log.Panic(cfg.Name, " error - missing artifact paths in call to NormalizeParquet.")
	}
	if _, statErr := os.Stat(cfg.CanonicalPath); statErr == nil { // if a canonical artifact exists from an earlier run...
		cfg.Log.Info(cfg.Name, " reusing canonical artifact: ", cfg.CanonicalPath)
		f, err = file.ReadFrame(cfg.Log, cfg.CanonicalPath)
		if err != nil {
			return nil, false, err
		}
		return f, true, nil
	}
	raw, err := file.ReadFrame(cfg.Log, cfg.RawPath)
	if err != nil {
		return nil, false, err
	}
	f, err = raw.RenameColumns(tripdata.CanonicalColumnName)
	if err != nil { // a rename collision means the source layout changed under us...
		return nil, false, &SchemaDriftError{Artifact: filepath.Base(cfg.RawPath), Reason: err.Error()}
	}
	if missing := tripdata.MissingCanonicalColumns(f.ColumnNames()); len(missing) > 0 {
		return nil, false, &SchemaDriftError{Artifact: filepath.Base(cfg.RawPath), Missing: missing}
	}
	if err = file.WriteFrame(cfg.Log, cfg.CanonicalPath, f); err != nil {
		return nil, false, err
	}
	// The canonical artifact is durable, so the raw download is no longer needed.
	if err = os.Remove(cfg.RawPath); err != nil {
		return nil, false, err
	}
	cfg.Log.Info(cfg.Name, " wrote canonical artifact with ", f.NumRows(), " rows: ", cfg.CanonicalPath)
	return f, false, nil
}
