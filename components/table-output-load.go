package components

import (
	"context"
	"sync/atomic"

	om "github.com/cevaris/ordered_map"
	c "github.com/datamunge/taxipipe/constants"
	"github.com/datamunge/taxipipe/logger"
	"github.com/datamunge/taxipipe/rdbms"
	"github.com/datamunge/taxipipe/rdbms/shared"
	s "github.com/datamunge/taxipipe/stats"
	"github.com/datamunge/taxipipe/stream"
	"github.com/pkg/errors"
)

// LoadPolicy decides what happens when the target table already exists.
type LoadPolicy int

const (
	// LoadPolicyFailIfExists skips the load when the table is already present.
	// Used for monthly staging tables, which are written exactly once.
	LoadPolicyFailIfExists LoadPolicy = iota
	// LoadPolicyAppend inserts into the table, creating it first if needed.
	// Used for yearly tables, which accumulate one month at a time.
	LoadPolicyAppend
)

type TableLoadConfig struct {
	Log             logger.Logger
	Name            string
	OutputDb        shared.Connector // target database connection for writes.
	SchemaName      string
	TableName       string
	Frame           *stream.Frame
	Policy          LoadPolicy
	ResetTable      bool // drop the table before loading; pairs with LoadPolicyAppend on a partition reset.
	TxtBatchNumRows int  // rows per multi-row INSERT statement.
	CommitBatchSize int  // commit interval in num rows.
	StepWatcher     *s.StepWatcher
}

// LoadTable writes the frame into schema.table in batched multi-row INSERTs.
// Warehouse exec failures are transient; a retry resumes against the dropped
// or partially filled table via the caller re-running the whole unit.
func LoadTable(ctx context.Context, cfg *TableLoadConfig) (rowsLoaded int64, err error) {
	if cfg.OutputDb == nil {
		cfg.Log.Panic(cfg.Name, " error - missing db connection in call to LoadTable.")
	}
	if cfg.Frame == nil {
		cfg.Log.Panic(cfg.Name, " error - missing input frame in call to LoadTable.")
	}
	if cfg.TxtBatchNumRows == 0 {
		cfg.TxtBatchNumRows = c.TxtBatchNumRowsDefault
	}
	if cfg.CommitBatchSize == 0 {
		cfg.CommitBatchSize = c.CommitBatchSizeDefault
	}
	st := rdbms.NewSchemaTable(cfg.SchemaName, cfg.TableName)
	exists, err := rdbms.TableExists(ctx, cfg.Log, cfg.OutputDb, st)
	if err != nil {
		return 0, Transient(err)
	}
	if exists {
		switch {
		case cfg.Policy == LoadPolicyFailIfExists:
			cfg.Log.Info(cfg.Name, " table ", st.String(), " already loaded")
			return 0, ErrAlreadyLoaded
		case cfg.ResetTable:
			if err = rdbms.DropTableIfExists(ctx, cfg.Log, cfg.OutputDb, st); err != nil {
				return 0, Transient(err)
			}
		}
	}
	cols := cfg.Frame.Columns()
	if err = rdbms.CreateTableIfNotExists(ctx, cfg.Log, cfg.OutputDb, st, cols); err != nil {
		return 0, Transient(err)
	}
	// Build the ordered map of record keys to target columns. Canonical frames
	// use the same name on both sides.
	targetCols := om.NewOrderedMap()
	for _, col := range cols {
		targetCols.Set(col.Name, col.Name)
	}
	gen := cfg.OutputDb.GetDmlGenerator().NewInsertGenerator(&shared.SqlStatementGeneratorConfig{
		Log:          cfg.Log,
		OutputSchema: cfg.SchemaName,
		OutputTable:  cfg.TableName,
		TargetCols:   targetCols,
	})
	batcher, ok := gen.(shared.SqlStmtTxtBatcher)
	if !ok {
		cfg.Log.Panic(cfg.Name, " - batched SQL INSERT is not supported for connection type ", cfg.OutputDb.GetType())
	}
	rowCount := int64(0)
	if cfg.StepWatcher != nil { // if we have been given a stepWatcher struct that can watch our rowCount...
		cfg.StepWatcher.StartWatching(&rowCount)
		defer cfg.StepWatcher.StopWatching()
	}
	rows := cfg.Frame.Rows()
	values := make([]interface{}, 0, len(cols))
	var tx shared.Transacter
	rowsSinceCommit := 0
	cfg.Log.Info(cfg.Name, " loading ", len(rows), " rows into ", st.String())
	for start := 0; start < len(rows); start += cfg.TxtBatchNumRows { // for each text batch of rows...
		end := start + cfg.TxtBatchNumRows
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		batcher.InitBatch(len(chunk))
		for _, rec := range chunk {
			values = values[:0]
			rec.GetDataByKeys(targetCols, &values)
			if _, err = batcher.AddValuesToBatch(values); err != nil {
				return atomic.LoadInt64(&rowCount), err
			}
		}
		if tx == nil { // if we need a new transaction...
			if tx, err = cfg.OutputDb.Begin(); err != nil {
				return atomic.LoadInt64(&rowCount), Transient(err)
			}
		}
		if _, err = tx.ExecContext(ctx, batcher.GetStatement(), batcher.GetValues()...); err != nil {
			_ = tx.Rollback()
			return atomic.LoadInt64(&rowCount), Transient(errors.Wrapf(err, "unable to insert batch into %v", st.String()))
		}
		atomic.AddInt64(&rowCount, int64(len(chunk)))
		rowsSinceCommit += len(chunk)
		if rowsSinceCommit >= cfg.CommitBatchSize { // if the commit interval is reached...
			if err = tx.Commit(); err != nil {
				return atomic.LoadInt64(&rowCount), Transient(err)
			}
			tx = nil
			rowsSinceCommit = 0
		}
	}
	if tx != nil { // if there are uncommitted rows...
		if err = tx.Commit(); err != nil {
			return atomic.LoadInt64(&rowCount), Transient(err)
		}
	}
	rowsLoaded = atomic.LoadInt64(&rowCount)
	cfg.Log.Info(cfg.Name, " loaded ", rowsLoaded, " rows into ", st.String())
	return rowsLoaded, nil
}
