package components

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/datamunge/taxipipe/file"
	"github.com/datamunge/taxipipe/stream"
	"github.com/sirupsen/logrus"
)

func rawYellowFrame() *stream.Frame {
	f := stream.NewFrame([]stream.Column{
		{Name: "VendorID", Kind: stream.KindInt64},
		{Name: "tpep_pickup_datetime", Kind: stream.KindTimestamp},
		{Name: "tpep_dropoff_datetime", Kind: stream.KindTimestamp},
		{Name: "PULocationID", Kind: stream.KindInt64},
		{Name: "DOLocationID", Kind: stream.KindInt64},
		{Name: "fare_amount", Kind: stream.KindFloat64},
	})
	base := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := stream.NewRecord()
		rec.SetData("VendorID", int64(i+1))
		rec.SetData("tpep_pickup_datetime", base.Add(time.Duration(i)*time.Hour))
		rec.SetData("tpep_dropoff_datetime", base.Add(time.Duration(i)*time.Hour+30*time.Minute))
		rec.SetData("PULocationID", int64(100+i))
		rec.SetData("DOLocationID", int64(200+i))
		rec.SetData("fare_amount", 12.5+float64(i))
		f.AppendRow(rec)
	}
	return f
}

func TestNormalizeParquet(t *testing.T) {
	log := logrus.New()
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "yellow_tripdata_2020-01.parquet")
	canonicalPath := rawPath + ".gz"
	if err := file.WriteFrame(log, rawPath, rawYellowFrame()); err != nil {
		t.Fatal(err)
	}

	cfg := &ParquetNormalizeConfig{
		Log:           log,
		Name:          "normalize test",
		RawPath:       rawPath,
		CanonicalPath: canonicalPath,
	}
	f, reused, err := NormalizeParquet(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if reused {
		t.Fatal("first normalize should not reuse a canonical artifact")
	}
	want := []string{"vendorid", "pickup_datetime", "dropoff_datetime", "pickup_locationid", "dropoff_locationid", "fare_amount"}
	got := f.ColumnNames()
	if len(got) != len(want) {
		t.Fatalf("expected %v columns, got %v", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %v: expected %q, got %q", i, want[i], got[i])
		}
	}
	if f.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %v", f.NumRows())
	}
	// Raw removed, canonical durable.
	if _, statErr := os.Stat(rawPath); !os.IsNotExist(statErr) {
		t.Fatal("raw artifact should be removed after normalize")
	}
	if _, statErr := os.Stat(canonicalPath); statErr != nil {
		t.Fatal("canonical artifact should exist after normalize")
	}

	// Second run reuses the canonical artifact.
	f2, reused, err := NormalizeParquet(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reused {
		t.Fatal("second normalize should reuse the canonical artifact")
	}
	if f2.NumRows() != 3 {
		t.Fatalf("expected 3 rows from canonical artifact, got %v", f2.NumRows())
	}
}

func TestNormalizeParquetSchemaDrift(t *testing.T) {
	log := logrus.New()
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "yellow_tripdata_2020-02.parquet")

	// Drop a required column so the canonical layout cannot be satisfied.
	f := stream.NewFrame([]stream.Column{
		{Name: "VendorID", Kind: stream.KindInt64},
		{Name: "tpep_pickup_datetime", Kind: stream.KindTimestamp},
		{Name: "fare_amount", Kind: stream.KindFloat64},
	})
	rec := stream.NewRecord()
	rec.SetData("VendorID", int64(1))
	rec.SetData("tpep_pickup_datetime", time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC))
	rec.SetData("fare_amount", 9.0)
	f.AppendRow(rec)
	if err := file.WriteFrame(log, rawPath, f); err != nil {
		t.Fatal(err)
	}

	_, _, err := NormalizeParquet(&ParquetNormalizeConfig{
		Log:           log,
		Name:          "drift test",
		RawPath:       rawPath,
		CanonicalPath: rawPath + ".gz",
	})
	if err == nil {
		t.Fatal("expected a schema drift error")
	}
	var drift *SchemaDriftError
	if !errors.As(err, &drift) {
		t.Fatalf("expected SchemaDriftError, got %T: %v", err, err)
	}
	if len(drift.Missing) == 0 {
		t.Fatal("expected missing canonical columns to be reported")
	}
	if IsTransient(err) {
		t.Fatal("schema drift must not be retried")
	}
	// The raw artifact stays for inspection.
	if _, statErr := os.Stat(rawPath); statErr != nil {
		t.Fatal("raw artifact should survive a schema drift failure")
	}
}
