package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/datamunge/taxipipe/components"
	c "github.com/datamunge/taxipipe/constants"
	"github.com/datamunge/taxipipe/logger"
	"github.com/datamunge/taxipipe/rdbms"
	"github.com/datamunge/taxipipe/rdbms/shared"
	s "github.com/datamunge/taxipipe/stats"
	"github.com/datamunge/taxipipe/tripdata"
)

// Orchestrator runs units of work through fetch, transform and load over a
// bounded worker pool. Units that share a target table form a partition group
// and run sequentially within one worker, so a yearly table always sees its
// months in ascending order.
type Orchestrator struct {
	Log             logger.Logger
	Db              shared.Connector
	Client          *http.Client
	DataDir         string
	Granularity     tripdata.Granularity
	SchemaMonthly   string
	SchemaYearly    string
	Workers         int
	TxtBatchNumRows int
	CommitBatchSize int
	FetchRetry      RetryPolicy
	LoadRetry       RetryPolicy
	WatchStats      bool // attach a StepWatcher to each unit's load stage.
}

// Run processes all units and returns the run summary. The returned error
// covers setup problems only; per-unit failures are reported in the summary.
func (o *Orchestrator) Run(ctx context.Context, units []tripdata.UnitOfWork) (Summary, error) {
	return o.RunWithLedger(ctx, NewRunLedger(o.Granularity), units)
}

// RunWithLedger is Run with a caller-supplied ledger, so callers can read
// intermediate state while the run is in flight.
func (o *Orchestrator) RunWithLedger(ctx context.Context, ledger *RunLedger, units []tripdata.UnitOfWork) (Summary, error) {
	if o.Db == nil {
		return Summary{}, errors.New("orchestrator is missing a warehouse connection")
	}
	if len(units) == 0 {
		return Summary{}, errors.New("no units of work to run")
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: time.Second * c.HttpTimeoutSecsDefault}
	}
	workers := o.Workers
	if workers < 1 {
		workers = c.WorkersDefault
	}
	if o.SchemaMonthly == "" {
		o.SchemaMonthly = c.SchemaMonthlyDefault
	}
	if o.SchemaYearly == "" {
		o.SchemaYearly = c.SchemaYearlyDefault
	}
	o.Log.Info("Run ", ledger.RunId(), " starting: ", len(units), " unit(s), ", workers, " worker(s), granularity ", string(o.Granularity))
	if err := rdbms.CreateSchemaIfNotExists(ctx, o.Log, o.Db, o.schema()); err != nil {
		return Summary{}, err
	}
	groups := groupUnits(units, o.Granularity)
	taskChan := make(chan []tripdata.UnitOfWork, c.ChanSize)
	resultChan := make(chan UnitOutcome, c.ChanSize)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range taskChan { // for each partition group...
				o.runGroup(ctx, group, resultChan)
			}
		}()
	}
	// Collect outcomes while workers run.
	collectorDone := make(chan struct{})
	go func() {
		for outcome := range resultChan {
			ledger.RecordOutcome(outcome)
		}
		close(collectorDone)
	}()
	for _, g := range groups {
		taskChan <- g
	}
	close(taskChan)
	wg.Wait()
	close(resultChan)
	<-collectorDone
	summary := ledger.Summary()
	o.Log.Info("Run ", summary.RunId, " complete: ",
		summary.Loaded, " loaded, ", summary.Skipped, " skipped, ", summary.Failed, " failed, ",
		summary.RowsLoaded, " rows")
	return summary, nil
}

// runGroup executes one partition group in month order. Once a month fails,
// the rest of the group is abandoned: appending later months over a gap would
// corrupt the partition.
func (o *Orchestrator) runGroup(ctx context.Context, group []tripdata.UnitOfWork, results chan<- UnitOutcome) {
	for i, unit := range group {
		outcome := o.runUnit(ctx, unit)
		results <- outcome
		if outcome.Status == StatusFailed {
			for _, rest := range group[i+1:] {
				results <- UnitOutcome{
					Unit:   rest,
					Table:  rest.TableName(o.Granularity),
					Status: StatusFailed,
					Stage:  outcome.Stage,
					Error:  fmt.Sprintf("not attempted: earlier unit %v failed", unit.String()),
				}
			}
			return
		}
	}
}

func (o *Orchestrator) runUnit(ctx context.Context, unit tripdata.UnitOfWork) UnitOutcome {
	started := time.Now()
	outcome := UnitOutcome{
		Unit:  unit,
		Table: unit.TableName(o.Granularity),
	}
	fail := func(stage Stage, err error) UnitOutcome {
		o.Log.Error(unit.String(), " failed in ", string(stage), ": ", err)
		outcome.Status = StatusFailed
		outcome.Stage = stage
		outcome.Error = err.Error()
		outcome.Duration = time.Since(started)
		return outcome
	}
	// Fetch.
	fetchAttempts, err := o.FetchRetry.Do(ctx, o.Log, unit.String()+" fetch", func() error {
		_, fetchErr := components.FetchHttpFile(ctx, &components.HttpFileFetchConfig{
			Log:           o.Log,
			Name:          unit.String() + " fetch",
			Client:        o.Client,
			Url:           unit.SourceURL(),
			TargetPath:    unit.ArtifactPath(o.DataDir),
			CanonicalPath: unit.CanonicalPath(o.DataDir),
		})
		return fetchErr
	})
	outcome.Attempts = fetchAttempts
	if err != nil {
		return fail(StageFetch, err)
	}
	// Transform.
	frame, reused, err := components.NormalizeParquet(&components.ParquetNormalizeConfig{
		Log:           o.Log,
		Name:          unit.String() + " transform",
		RawPath:       unit.ArtifactPath(o.DataDir),
		CanonicalPath: unit.CanonicalPath(o.DataDir),
	})
	if err != nil {
		return fail(StageTransform, err)
	}
	if reused {
		o.Log.Debug(unit.String(), " canonical artifact reused")
	}
	// Load.
	var stepWatcher *s.StepWatcher
	if o.WatchStats {
		stepWatcher = s.NewStepWatcher(o.Log, unit.String()+" load")
	}
	var rowsLoaded int64
	loadAttempts, err := o.LoadRetry.Do(ctx, o.Log, unit.String()+" load", func() error {
		var loadErr error
		rowsLoaded, loadErr = components.LoadTable(ctx, &components.TableLoadConfig{
			Log:             o.Log,
			Name:            unit.String() + " load",
			OutputDb:        o.Db,
			SchemaName:      o.schema(),
			TableName:       outcome.Table,
			Frame:           frame,
			Policy:          o.loadPolicy(),
			ResetTable:      o.Granularity == tripdata.GranularityYearly && unit.Month == 1,
			TxtBatchNumRows: o.TxtBatchNumRows,
			CommitBatchSize: o.CommitBatchSize,
			StepWatcher:     stepWatcher,
		})
		return loadErr
	})
	outcome.Attempts += loadAttempts
	outcome.Duration = time.Since(started)
	if errors.Is(err, components.ErrAlreadyLoaded) { // if the table was loaded by an earlier run...
		outcome.Status = StatusSkipped
		outcome.Stage = StageLoad
		return outcome
	}
	if err != nil {
		return fail(StageLoad, err)
	}
	outcome.Status = StatusLoaded
	outcome.Stage = StageLoad
	outcome.RowsLoaded = rowsLoaded
	o.Log.Info(unit.String(), " loaded ", rowsLoaded, " rows into ", o.schema(), ".", outcome.Table)
	return outcome
}

func (o *Orchestrator) schema() string {
	if o.Granularity == tripdata.GranularityYearly {
		return o.SchemaYearly
	}
	return o.SchemaMonthly
}

func (o *Orchestrator) loadPolicy() components.LoadPolicy {
	if o.Granularity == tripdata.GranularityYearly {
		return components.LoadPolicyAppend
	}
	return components.LoadPolicyFailIfExists
}

// groupUnits buckets units by target table and sorts each bucket by month.
// Groups come back in table-name order so runs are deterministic.
func groupUnits(units []tripdata.UnitOfWork, g tripdata.Granularity) [][]tripdata.UnitOfWork {
	byTable := make(map[string][]tripdata.UnitOfWork)
	names := make([]string, 0)
	for _, u := range units {
		name := u.TableName(g)
		if _, ok := byTable[name]; !ok {
			names = append(names, name)
		}
		byTable[name] = append(byTable[name], u)
	}
	sort.Strings(names)
	groups := make([][]tripdata.UnitOfWork, 0, len(names))
	for _, name := range names {
		group := byTable[name]
		sort.Slice(group, func(i, j int) bool { return group[i].Month < group[j].Month })
		groups = append(groups, group)
	}
	return groups
}
