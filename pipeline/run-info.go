package pipeline

import (
	"sort"
	"sync"
)

// SafeMapRunInfo wraps a map of run ledgers with locking, via Load() and
// Store() methods. The serve surface reads it while runs are in flight, so
// summaries are rendered from the live ledgers on every read.
type SafeMapRunInfo struct {
	sync.RWMutex
	Internal map[string]*RunLedger
}

func NewSafeMapRunInfo() *SafeMapRunInfo {
	ri := SafeMapRunInfo{}
	ri.Internal = make(map[string]*RunLedger)
	return &ri
}

func (r *SafeMapRunInfo) Load(key string) (s Summary, ok bool) {
	r.RLock()
	ledger, ok := r.Internal[key]
	r.RUnlock()
	if !ok {
		return Summary{}, false
	}
	return ledger.Summary(), true
}

func (r *SafeMapRunInfo) Store(ledger *RunLedger) {
	r.Lock()
	r.Internal[ledger.RunId()] = ledger
	r.Unlock()
}

// List returns all run summaries ordered by start time.
func (r *SafeMapRunInfo) List() []Summary {
	r.RLock()
	out := make([]Summary, 0, len(r.Internal))
	for _, ledger := range r.Internal {
		out = append(out, ledger.Summary())
	}
	r.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}
