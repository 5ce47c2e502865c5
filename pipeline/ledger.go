package pipeline

import (
	"sync"
	"time"

	"github.com/datamunge/taxipipe/tripdata"
	"github.com/rs/xid"
)

// RunLedger collects unit outcomes for one run behind a lock so worker
// goroutines can record results concurrently.
type RunLedger struct {
	sync.RWMutex
	runId       string
	granularity tripdata.Granularity
	startTime   time.Time
	outcomes    map[string]UnitOutcome
	order       []string // unit keys in arrival order, for stable summaries.
}

func NewRunLedger(g tripdata.Granularity) *RunLedger {
	return &RunLedger{
		runId:       xid.New().String(),
		granularity: g,
		startTime:   time.Now(),
		outcomes:    make(map[string]UnitOutcome),
	}
}

func (l *RunLedger) RunId() string {
	return l.runId
}

func (l *RunLedger) RecordOutcome(o UnitOutcome) {
	l.Lock()
	key := o.Unit.Key()
	if _, ok := l.outcomes[key]; !ok {
		l.order = append(l.order, key)
	}
	l.outcomes[key] = o
	l.Unlock()
}

func (l *RunLedger) Load(key string) (o UnitOutcome, ok bool) {
	l.RLock()
	o, ok = l.outcomes[key]
	l.RUnlock()
	return
}

// Summary renders the ledger's current state.
func (l *RunLedger) Summary() Summary {
	l.RLock()
	defer l.RUnlock()
	s := Summary{
		RunId:       l.runId,
		Granularity: string(l.granularity),
		StartTime:   l.startTime,
		EndTime:     time.Now(),
		Outcomes:    make([]UnitOutcome, 0, len(l.order)),
	}
	for _, key := range l.order {
		o := l.outcomes[key]
		s.Outcomes = append(s.Outcomes, o)
		s.RowsLoaded += o.RowsLoaded
		switch o.Status {
		case StatusLoaded:
			s.Loaded++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
