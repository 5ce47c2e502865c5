package tripdata

import (
	"path/filepath"
	"testing"
)

func TestNewUnitOfWorkValidation(t *testing.T) {
	if _, err := NewUnitOfWork(ServiceYellow, 2020, 0); err == nil {
		t.Fatal("Expected an error for month 0.")
	}
	if _, err := NewUnitOfWork(ServiceYellow, 2020, 13); err == nil {
		t.Fatal("Expected an error for month 13.")
	}
	if _, err := NewUnitOfWork("purple", 2020, 1); err == nil {
		t.Fatal("Expected an error for an unknown service.")
	}
	if _, err := NewUnitOfWork(ServiceGreen, 2020, 12); err != nil {
		t.Fatal("Unexpected error for a valid unit: ", err)
	}
}

func TestSourceURL(t *testing.T) {
	u, _ := NewUnitOfWork(ServiceYellow, 2020, 3)
	expected := "https://d37ci6vzurychx.cloudfront.net/trip-data/yellow_tripdata_2020-03.parquet"
	if u.SourceURL() != expected {
		t.Fatalf("Unexpected URL: got %v, expected %v", u.SourceURL(), expected)
	}
}

func TestArtifactPaths(t *testing.T) {
	u, _ := NewUnitOfWork(ServiceGreen, 2019, 11)
	p := u.ArtifactPath("data")
	expected := filepath.Join("data", "green", "2019", "green_tripdata_2019-11.parquet")
	if p != expected {
		t.Fatalf("Unexpected artifact path: got %v, expected %v", p, expected)
	}
	if u.CanonicalPath("data") != expected+".gz" {
		t.Fatal("Unexpected canonical path: ", u.CanonicalPath("data"))
	}
}

// Table names must be pure and deterministic and must never collide across
// different partitions.
func TestTableNames(t *testing.T) {
	u, _ := NewUnitOfWork(ServiceYellow, 2020, 1)
	if u.TableName(GranularityMonthly) != "yellow_tripdata_2020_01" {
		t.Fatal("Unexpected monthly table name: ", u.TableName(GranularityMonthly))
	}
	if u.TableName(GranularityYearly) != "yellow_tripdata_2020" {
		t.Fatal("Unexpected yearly table name: ", u.TableName(GranularityYearly))
	}
	// Repeated calls are identical.
	if u.TableName(GranularityMonthly) != u.TableName(GranularityMonthly) {
		t.Fatal("Table name is not deterministic.")
	}
	// All monthly and yearly names across the parameter space are unique.
	seen := make(map[string]UnitOfWork)
	for _, svc := range AllServices() {
		for _, year := range []int{2019, 2020} {
			for month := 1; month <= 12; month++ {
				unit, err := NewUnitOfWork(svc, year, month)
				if err != nil {
					t.Fatal(err)
				}
				for _, name := range []string{unit.TableName(GranularityMonthly), unit.TableName(GranularityYearly) + "#yearly"} {
					if prev, ok := seen[name]; ok {
						// Yearly names legitimately repeat for units of the same partition.
						if name == unit.TableName(GranularityYearly)+"#yearly" && prev.Service == unit.Service && prev.Year == unit.Year {
							continue
						}
						t.Fatalf("Name collision: %v produced by both %v and %v", name, prev, unit)
					}
					seen[name] = unit
				}
			}
		}
	}
}

func TestParseArtifactName(t *testing.T) {
	u, err := ParseArtifactName("/data/green/2020/green_tripdata_2020-05.parquet.gz")
	if err != nil {
		t.Fatal(err)
	}
	if u.Service != ServiceGreen || u.Year != 2020 || u.Month != 5 {
		t.Fatal("Unexpected unit parsed: ", u)
	}
	if _, err := ParseArtifactName("notes.txt"); err == nil {
		t.Fatal("Expected an error for a non-artifact file name.")
	}
}

func TestParseServicesCsv(t *testing.T) {
	svcs, err := ParseServicesCsv("yellow, green")
	if err != nil || len(svcs) != 2 {
		t.Fatalf("Unexpected result: %v %v", svcs, err)
	}
	if _, err := ParseServicesCsv("yellow,taxi"); err == nil {
		t.Fatal("Expected an error for an unknown service in the CSV.")
	}
}
