package components

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestFetchHttpFile(t *testing.T) {
	log := logrus.New()
	ctx := context.Background()
	payload := []byte("parquet bytes go here")
	hits := 0
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write(payload)
	}))
	defer svr.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "yellow", "2020", "yellow_tripdata_2020-01.parquet")
	cfg := &HttpFileFetchConfig{
		Log:           log,
		Name:          "fetch test",
		Client:        &http.Client{Timeout: 5 * time.Second},
		Url:           svr.URL + "/yellow_tripdata_2020-01.parquet",
		TargetPath:    target,
		CanonicalPath: target + ".gz",
	}

	// First fetch downloads.
	skipped, err := FetchHttpFile(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if skipped {
		t.Fatal("first fetch should not be skipped")
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatal("downloaded content does not match")
	}
	if _, err := os.Stat(target + ".part"); !os.IsNotExist(err) {
		t.Fatal("temp file should have been renamed away")
	}

	// Second fetch is a no-op against the raw artifact.
	skipped, err = FetchHttpFile(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !skipped {
		t.Fatal("second fetch should be skipped")
	}
	if hits != 1 {
		t.Fatalf("expected 1 hit on the server, got %v", hits)
	}

	// Canonical artifact alone also skips the fetch.
	if err := os.Remove(target); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target+".gz", []byte("canonical"), 0644); err != nil {
		t.Fatal(err)
	}
	skipped, err = FetchHttpFile(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !skipped {
		t.Fatal("fetch should be skipped when the canonical artifact exists")
	}
	if hits != 1 {
		t.Fatalf("expected no further hits on the server, got %v", hits)
	}
}

func TestFetchHttpFileNotFoundIsTransient(t *testing.T) {
	log := logrus.New()
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer svr.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "green_tripdata_2021-02.parquet")
	skipped, err := FetchHttpFile(context.Background(), &HttpFileFetchConfig{
		Log:        log,
		Name:       "fetch 404 test",
		Client:     svr.Client(),
		Url:        svr.URL + "/green_tripdata_2021-02.parquet",
		TargetPath: target,
	})
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	if skipped {
		t.Fatal("a failed fetch is not a skip")
	}
	if !IsTransient(err) {
		t.Fatalf("a 404 from the source should be transient, got: %v", err)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Fatal("no artifact should be written on failure")
	}
}
