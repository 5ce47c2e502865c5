package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/datamunge/taxipipe/tripdata"
)

// Stage names the step of a unit's lifecycle, used in outcomes and logs.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
)

type UnitStatus uint32

const (
	StatusPending UnitStatus = iota
	StatusLoaded
	StatusSkipped
	StatusFailed
)

func (s UnitStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusLoaded:
		return "loaded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

func (s UnitStatus) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

func (s *UnitStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	switch str {
	case "pending":
		*s = StatusPending
	case "loaded":
		*s = StatusLoaded
	case "skipped":
		*s = StatusSkipped
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown unit status %q", str)
	}
	return nil
}

// UnitOutcome is the terminal state of one unit of work within a run.
type UnitOutcome struct {
	Unit       tripdata.UnitOfWork `json:"unit"`
	Table      string              `json:"table"`
	Status     UnitStatus          `json:"status"`
	Stage      Stage               `json:"stage"` // the stage the unit finished or failed in.
	RowsLoaded int64               `json:"rowsLoaded"`
	Attempts   int                 `json:"attempts"`
	Error      string              `json:"error,omitempty"`
	Duration   time.Duration       `json:"durationNs"`
}

// Summary aggregates the outcomes of one run.
type Summary struct {
	RunId       string        `json:"runId"`
	Granularity string        `json:"granularity"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Loaded      int           `json:"loaded"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	RowsLoaded  int64         `json:"rowsLoaded"`
	Outcomes    []UnitOutcome `json:"outcomes"`
}

func (s *Summary) HasFailures() bool {
	return s.Failed > 0
}

// UnitsFor expands services x months for one year into units of work.
func UnitsFor(services []tripdata.Service, year int, months []int) ([]tripdata.UnitOfWork, error) {
	units := make([]tripdata.UnitOfWork, 0, len(services)*len(months))
	for _, svc := range services {
		for _, m := range months {
			u, err := tripdata.NewUnitOfWork(svc, year, m)
			if err != nil {
				return nil, err
			}
			units = append(units, u)
		}
	}
	return units, nil
}
