package constants

import (
	"fmt"
	"regexp"
	"testing"
)

func TestTimeFormat(t *testing.T) {
	// Check that the global regexp can match constant TimeFormatYearSeconds.
	re := regexp.MustCompile(TimeFormatYearSecondsRegex)
	if !re.MatchString(TimeFormatYearSeconds) {
		t.Fatal("Mismatch between TimeFormatYearSeconds and regexp in constant TimeFormatYearSecondsRegex.")
	}
}

func TestSourceUrlTemplate(t *testing.T) {
	url := fmt.Sprintf(SourceUrlTemplate, "yellow", 2020, 1)
	expected := "https://d37ci6vzurychx.cloudfront.net/trip-data/yellow_tripdata_2020-01.parquet"
	if url != expected {
		t.Fatalf("Unexpected URL from template: got %v, expected %v", url, expected)
	}
}
