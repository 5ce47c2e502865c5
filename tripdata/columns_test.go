package tripdata

import "testing"

// Every known source column across both services must map to exactly one
// deterministic canonical name; unknown columns pass through (lower-cased).
func TestCanonicalColumnName(t *testing.T) {
	cases := map[string]string{
		// yellow
		"VendorID":              "vendorid",
		"tpep_pickup_datetime":  "pickup_datetime",
		"tpep_dropoff_datetime": "dropoff_datetime",
		"passenger_count":       "passenger_count",
		"trip_distance":         "trip_distance",
		"RatecodeID":            "ratecodeid",
		"store_and_fwd_flag":    "store_and_fwd_flag",
		"PULocationID":          "pickup_locationid",
		"DOLocationID":          "dropoff_locationid",
		"payment_type":          "payment_type",
		"fare_amount":           "fare_amount",
		"extra":                 "extra",
		"mta_tax":               "mta_tax",
		"tip_amount":            "tip_amount",
		"tolls_amount":          "tolls_amount",
		"improvement_surcharge": "improvement_surcharge",
		"total_amount":          "total_amount",
		"congestion_surcharge":  "congestion_surcharge",
		// green-specific
		"lpep_pickup_datetime":  "pickup_datetime",
		"lpep_dropoff_datetime": "dropoff_datetime",
		"ehail_fee":             "ehail_fee",
		"trip_type":             "trip_type",
		// unknown columns pass through
		"surprise_column": "surprise_column",
	}
	for in, expected := range cases {
		got := CanonicalColumnName(in)
		if got != expected {
			t.Fatalf("CanonicalColumnName(%q) = %q, expected %q", in, got, expected)
		}
		// Deterministic on repeat.
		if CanonicalColumnName(in) != got {
			t.Fatalf("CanonicalColumnName(%q) is not deterministic", in)
		}
	}
}

func TestMissingCanonicalColumns(t *testing.T) {
	missing := MissingCanonicalColumns([]string{"pickup_datetime", "dropoff_datetime", "pickup_locationid", "dropoff_locationid", "extra"})
	if len(missing) != 0 {
		t.Fatal("Expected no missing columns, got: ", missing)
	}
	missing = MissingCanonicalColumns([]string{"pickup_datetime"})
	if len(missing) != 3 {
		t.Fatal("Expected three missing columns, got: ", missing)
	}
}
