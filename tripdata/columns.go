package tripdata

import "strings"

// CanonicalColumnName maps a source column name to the canonical schema shared
// by all services. The mapping is a pure string transformation applied to every
// column name: expand the abbreviated location-id columns, lower-case, then
// strip the service-specific timestamp prefixes. It is total - names that match
// no rule pass through unchanged (apart from lower-casing), so unexpected
// columns are preserved rather than dropped.
//
// Examples:
//
//	tpep_pickup_datetime -> pickup_datetime
//	lpep_dropoff_datetime -> dropoff_datetime
//	PULocationID -> pickup_locationid
//	DOLocationID -> dropoff_locationid
func CanonicalColumnName(name string) string {
	n := strings.ReplaceAll(name, "PUL", "pickup_l")
	n = strings.ReplaceAll(n, "DOL", "dropoff_l")
	n = strings.ToLower(n)
	n = strings.ReplaceAll(n, "tpep_", "")
	n = strings.ReplaceAll(n, "lpep_", "")
	return n
}

// canonicalRequiredColumns are the columns every normalized trip frame must
// carry. Their absence after renaming means the source schema has drifted
// beyond what the mapping can absorb.
var canonicalRequiredColumns = []string{
	"pickup_datetime",
	"dropoff_datetime",
	"pickup_locationid",
	"dropoff_locationid",
}

// MissingCanonicalColumns returns the required canonical columns absent from cols.
func MissingCanonicalColumns(cols []string) []string {
	have := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		have[c] = struct{}{}
	}
	var missing []string
	for _, want := range canonicalRequiredColumns {
		if _, ok := have[want]; !ok {
			missing = append(missing, want)
		}
	}
	return missing
}
