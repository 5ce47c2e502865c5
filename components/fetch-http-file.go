package components

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	c "github.com/datamunge/taxipipe/constants"
	"github.com/datamunge/taxipipe/logger"
)

type HttpFileFetchConfig struct {
	Log           logger.Logger
	Name          string
	Client        *http.Client
	Url           string // source URL to GET.
	TargetPath    string // raw artifact landing path.
	CanonicalPath string // canonical artifact path; its presence also makes the fetch a no-op.
}

// FetchHttpFile downloads cfg.Url to cfg.TargetPath unless the raw or canonical
// artifact already exists on disk, in which case the fetch is skipped.
// The body is streamed to a temp file and renamed into place so a killed
// process never leaves a partial artifact behind.
func FetchHttpFile(ctx context.Context, cfg *HttpFileFetchConfig) (skipped bool, err error) {
	if cfg.Client == nil {
		cfg.Log.Panic(cfg.Name, " error - missing HTTP client in call to FetchHttpFile.")
	}
	if cfg.Url == "" || cfg.TargetPath == "" {
		cfg.Log.Panic(cfg.Name, " error - missing URL or target path in call to FetchHttpFile.")
	}
	// Idempotency: an artifact from an earlier run makes this a no-op.
	if cfg.CanonicalPath != "" {
		if _, statErr := os.Stat(cfg.CanonicalPath); statErr == nil {
			cfg.Log.Info(cfg.Name, " skipping fetch, canonical artifact exists: ", cfg.CanonicalPath)
			return true, nil
		}
	}
	if _, statErr := os.Stat(cfg.TargetPath); statErr == nil {
		cfg.Log.Info(cfg.Name, " skipping fetch, raw artifact exists: ", cfg.TargetPath)
		return true, nil
	}
	if err = os.MkdirAll(filepath.Dir(cfg.TargetPath), 0755); err != nil {
		return false, err
	}
	cfg.Log.Info(cfg.Name, " fetching ", cfg.Url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Url, nil)
	if err != nil {
		return false, err
	}
	resp, err := cfg.Client.Do(req)
	if err != nil { // network faults are worth retrying...
		return false, Transient(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		// The source publishes months late and 404s until then, so
		// non-200 responses stay retryable rather than failing the run outright.
		return false, Transientf("unexpected response %v fetching %v", resp.Status, cfg.Url)
	}
	tmpPath := cfg.TargetPath + c.PartSuffix
	out, err := os.Create(tmpPath)
	if err != nil {
		return false, err
	}
	written, err := io.Copy(out, resp.Body)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return false, Transient(err)
	}
	if err = out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return false, err
	}
	if err = os.Rename(tmpPath, cfg.TargetPath); err != nil {
		return false, err
	}
	cfg.Log.Info(cfg.Name, " fetched ", written, " bytes to ", cfg.TargetPath)
	return false, nil
}
