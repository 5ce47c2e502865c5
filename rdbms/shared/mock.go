package shared

import (
	"context"
	"fmt"
	"strings"

	"github.com/datamunge/taxipipe/logger"
)

// MockConnection implements Connector and records all SQL executed against it
// onto a channel for assertion in tests. Transactions share the same channel.
type MockConnection struct {
	Log            logger.Logger
	DbType         string
	SqlChan        chan string
	ExistingTables map[string]bool       // "schema.table" keys answered by table existence lookups.
	ExecErr        func(sql string) error // when set, called per Exec to inject failures.
}

// NewMockConnectionWithMockTx returns a Connector whose Exec calls emit the SQL text
// onto the returned channel. The channel is buffered so tests can drain it after the fact.
func NewMockConnectionWithMockTx(log logger.Logger, dbType string) (*MockConnection, chan string) {
	c := make(chan string, 1000)
	return &MockConnection{
		Log:            log,
		DbType:         dbType,
		SqlChan:        c,
		ExistingTables: make(map[string]bool),
	}, c
}

func (m *MockConnection) Begin() (Transacter, error) {
	m.Log.Debug("MockConnection.Begin()")
	return &mockTx{m: m}, nil
}

func (m *MockConnection) Exec(query string, args ...interface{}) (Result, error) {
	return m.ExecContext(context.Background(), query, args...)
}

func (m *MockConnection) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	m.Log.Debug("MockConnection.ExecContext: ", query)
	if m.ExecErr != nil {
		if err := m.ExecErr(query); err != nil {
			return nil, err
		}
	}
	m.SqlChan <- query
	return mockResult{rows: int64(len(args))}, nil
}

// QueryRowContext answers table existence lookups using the ExistingTables map.
// The last two args are expected to be the schema and table name.
func (m *MockConnection) QueryRowContext(ctx context.Context, query string, args ...interface{}) RowScanner {
	m.Log.Debug("MockConnection.QueryRowContext: ", query)
	if len(args) >= 2 {
		schema, okSchema := args[len(args)-2].(string)
		table, okTable := args[len(args)-1].(string)
		if okSchema && okTable {
			return mockRow{exists: m.ExistingTables[strings.ToLower(schema)+"."+strings.ToLower(table)]}
		}
	}
	return mockRow{err: fmt.Errorf("mock cannot answer query %q", query)}
}

func (m *MockConnection) Close() {
	m.Log.Debug("MockConnection.Close()")
}

func (m *MockConnection) GetType() string {
	return m.DbType
}

func (m *MockConnection) GetDmlGenerator() DmlGenerator {
	return &DmlGeneratorTxtBatch{}
}

// AddTable registers schema.table as existing for subsequent existence lookups.
func (m *MockConnection) AddTable(schema, table string) {
	m.ExistingTables[strings.ToLower(schema)+"."+strings.ToLower(table)] = true
}

type mockTx struct {
	m *MockConnection
}

func (t *mockTx) Exec(query string, args ...interface{}) (Result, error) {
	return t.m.Exec(query, args...)
}

func (t *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return t.m.ExecContext(ctx, query, args...)
}

func (t *mockTx) Commit() error {
	t.m.Log.Debug("mockTx.Commit()")
	t.m.SqlChan <- "commit"
	return nil
}

func (t *mockTx) Rollback() error {
	t.m.Log.Debug("mockTx.Rollback()")
	t.m.SqlChan <- "rollback"
	return nil
}

type mockResult struct {
	rows int64
}

func (r mockResult) LastInsertId() (int64, error) { return 0, nil }
func (r mockResult) RowsAffected() (int64, error) { return r.rows, nil }

type mockRow struct {
	exists bool
	err    error
}

func (r mockRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != 1 {
		return fmt.Errorf("mock row expected a single scan target, got %v", len(dest))
	}
	b, ok := dest[0].(*bool)
	if !ok {
		return fmt.Errorf("mock row expected *bool scan target, got %T", dest[0])
	}
	*b = r.exists
	return nil
}
