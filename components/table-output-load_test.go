package components

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/datamunge/taxipipe/rdbms/shared"
	"github.com/datamunge/taxipipe/stream"
	"github.com/sirupsen/logrus"
)

func canonicalFrame(numRows int) *stream.Frame {
	f := stream.NewFrame([]stream.Column{
		{Name: "pickup_datetime", Kind: stream.KindTimestamp},
		{Name: "dropoff_datetime", Kind: stream.KindTimestamp},
		{Name: "pickup_locationid", Kind: stream.KindInt64},
		{Name: "dropoff_locationid", Kind: stream.KindInt64},
		{Name: "fare_amount", Kind: stream.KindFloat64},
	})
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < numRows; i++ {
		rec := stream.NewRecord()
		rec.SetData("pickup_datetime", base.Add(time.Duration(i)*time.Minute))
		rec.SetData("dropoff_datetime", base.Add(time.Duration(i)*time.Minute+10*time.Minute))
		rec.SetData("pickup_locationid", int64(i))
		rec.SetData("dropoff_locationid", int64(i+1))
		rec.SetData("fare_amount", float64(i)*1.5)
		f.AppendRow(rec)
	}
	return f
}

func drainSql(c chan string) []string {
	var out []string
	for {
		select {
		case s := <-c:
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestLoadTableBatchesAndCommits(t *testing.T) {
	log := logrus.New()
	ctx := context.Background()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, "mock")

	rows, err := LoadTable(ctx, &TableLoadConfig{
		Log:             log,
		Name:            "load test",
		OutputDb:        db,
		SchemaName:      "staging",
		TableName:       "yellow_tripdata_2020_01",
		Frame:           canonicalFrame(5),
		Policy:          LoadPolicyFailIfExists,
		TxtBatchNumRows: 2,
		CommitBatchSize: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rows != 5 {
		t.Fatalf("expected 5 rows loaded, got %v", rows)
	}

	got := drainSql(sqlChan)
	// create table, 2-row insert, 2-row insert, commit (4 rows >= interval), 1-row insert, commit.
	if len(got) != 6 {
		t.Fatalf("expected 6 statements, got %v: %v", len(got), got)
	}
	if !strings.HasPrefix(got[0], "create table if not exists staging.yellow_tripdata_2020_01") {
		t.Fatalf("expected create table first, got: %v", got[0])
	}
	if !strings.Contains(got[1], "values ( $1,$2,$3,$4,$5 ),( $6,$7,$8,$9,$10 )") {
		t.Fatalf("expected a 2-row insert, got: %v", got[1])
	}
	if got[3] != "commit" {
		t.Fatalf("expected commit after the interval, got: %v", got[3])
	}
	if !strings.Contains(got[4], "values ( $1,$2,$3,$4,$5 )") || strings.Contains(got[4], "$6") {
		t.Fatalf("expected a 1-row insert for the remainder, got: %v", got[4])
	}
	if got[5] != "commit" {
		t.Fatalf("expected a final commit, got: %v", got[5])
	}
}

func TestLoadTableFailIfExists(t *testing.T) {
	log := logrus.New()
	db, _ := shared.NewMockConnectionWithMockTx(log, "mock")
	db.AddTable("staging", "yellow_tripdata_2020_01")

	_, err := LoadTable(context.Background(), &TableLoadConfig{
		Log:        log,
		Name:       "load exists test",
		OutputDb:   db,
		SchemaName: "staging",
		TableName:  "yellow_tripdata_2020_01",
		Frame:      canonicalFrame(1),
		Policy:     LoadPolicyFailIfExists,
	})
	if !errors.Is(err, ErrAlreadyLoaded) {
		t.Fatalf("expected ErrAlreadyLoaded, got: %v", err)
	}
}

func TestLoadTableAppendWithReset(t *testing.T) {
	log := logrus.New()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, "mock")
	db.AddTable("trips_data_all", "yellow_tripdata_2020")

	rows, err := LoadTable(context.Background(), &TableLoadConfig{
		Log:        log,
		Name:       "load reset test",
		OutputDb:   db,
		SchemaName: "trips_data_all",
		TableName:  "yellow_tripdata_2020",
		Frame:      canonicalFrame(2),
		Policy:     LoadPolicyAppend,
		ResetTable: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rows != 2 {
		t.Fatalf("expected 2 rows loaded, got %v", rows)
	}
	got := drainSql(sqlChan)
	if !strings.HasPrefix(got[0], "drop table if exists trips_data_all.yellow_tripdata_2020") {
		t.Fatalf("expected drop table first on reset, got: %v", got[0])
	}
	if !strings.HasPrefix(got[1], "create table if not exists trips_data_all.yellow_tripdata_2020") {
		t.Fatalf("expected create table after drop, got: %v", got[1])
	}
}

func TestLoadTableAppendWithoutReset(t *testing.T) {
	log := logrus.New()
	db, sqlChan := shared.NewMockConnectionWithMockTx(log, "mock")
	db.AddTable("trips_data_all", "yellow_tripdata_2020")

	_, err := LoadTable(context.Background(), &TableLoadConfig{
		Log:        log,
		Name:       "load append test",
		OutputDb:   db,
		SchemaName: "trips_data_all",
		TableName:  "yellow_tripdata_2020",
		Frame:      canonicalFrame(1),
		Policy:     LoadPolicyAppend,
	})
	if err != nil {
		t.Fatal(err)
	}
	got := drainSql(sqlChan)
	for _, s := range got {
		if strings.HasPrefix(s, "drop table") {
			t.Fatalf("append without reset must not drop the table: %v", s)
		}
	}
}

func TestLoadTableExecErrorIsTransient(t *testing.T) {
	log := logrus.New()
	db, _ := shared.NewMockConnectionWithMockTx(log, "mock")
	db.ExecErr = func(sql string) error {
		if strings.HasPrefix(sql, "insert") {
			return errors.New("connection reset by peer")
		}
		return nil
	}

	_, err := LoadTable(context.Background(), &TableLoadConfig{
		Log:        log,
		Name:       "load failure test",
		OutputDb:   db,
		SchemaName: "staging",
		TableName:  "green_tripdata_2021_03",
		Frame:      canonicalFrame(1),
		Policy:     LoadPolicyFailIfExists,
	})
	if err == nil {
		t.Fatal("expected an error from the failing insert")
	}
	if !IsTransient(err) {
		t.Fatalf("warehouse exec failures should be transient, got: %v", err)
	}
}
