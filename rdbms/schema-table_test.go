package rdbms

import (
	"testing"

	"github.com/datamunge/taxipipe/logger"
)

func TestSchemaTable(t *testing.T) {
	log := logger.NewLogger("taxipipe", "info", true)
	// Test 1
	input := "staging.yellow_tripdata_2020_01"
	log.Info("Testing SchemaTable: ", input)
	st := SchemaTable{SchemaTable: input}
	// Test 1 - Schema
	got := st.GetSchema()
	expected := "staging"
	if got != expected {
		t.Fatalf("expected schema = %q; got %q", expected, got)
	}
	// Test 1 - Table
	got = st.GetTable()
	expected = "yellow_tripdata_2020_01"
	if got != expected {
		t.Fatalf("expected table = %q; got %q", expected, got)
	}
	// Test 1 - String
	got = st.String()
	expected = input
	if got != expected {
		t.Fatalf("expected %q; got %q", expected, got)
	}

	// Test 2 - no schema
	input = "green_tripdata_2021"
	log.Info("Testing SchemaTable: ", input)
	st = SchemaTable{SchemaTable: input}
	if got = st.GetSchema(); got != "" {
		t.Fatalf("expected empty schema; got %q", got)
	}
	if got = st.GetTable(); got != input {
		t.Fatalf("expected table = %q; got %q", input, got)
	}

	// Test 3 - constructor
	st = NewSchemaTable("trips_data_all", "yellow_tripdata_2020")
	if st.String() != "trips_data_all.yellow_tripdata_2020" {
		t.Fatalf("unexpected schema table: %v", st.String())
	}
	st = NewSchemaTable("", "yellow_tripdata_2020")
	if st.String() != "yellow_tripdata_2020" {
		t.Fatalf("unexpected schema table: %v", st.String())
	}
}
