package shared

import (
	"context"
	"database/sql"
	"errors"
)

// DbConnection is a wrapper around Go native sql.DB.
// It adds the DmlGenerator interface for use in components that output records to a database.
type DbConnection struct {
	DbSql  *sql.DB
	Dml    DmlGenerator
	DbType string
}

// Connector:

func (c *DbConnection) Begin() (Transacter, error) {
	if c.DbSql == nil {
		return nil, errors.New("DbConnection was not configured correctly: DbSql is missing")
	}
	tx, err := c.DbSql.Begin()
	return &DbTx{tx: tx}, err
}

func (c *DbConnection) Exec(query string, args ...interface{}) (Result, error) {
	return c.ExecContext(context.Background(), query, args...)
}

func (c *DbConnection) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return c.DbSql.ExecContext(ctx, query, args...)
}

func (c *DbConnection) QueryRowContext(ctx context.Context, query string, args ...interface{}) RowScanner {
	return c.DbSql.QueryRowContext(ctx, query, args...)
}

func (c *DbConnection) Close() {
	_ = c.DbSql.Close()
}

func (c *DbConnection) GetDmlGenerator() DmlGenerator {
	return c.Dml
}

func (c *DbConnection) GetType() string {
	return c.DbType
}

// Transacter:

type DbTx struct {
	tx *sql.Tx
}

func (t *DbTx) Exec(query string, args ...interface{}) (Result, error) {
	return t.ExecContext(context.Background(), query, args...)
}

func (t *DbTx) ExecContext(ctx context.Context, query string, args ...interface{}) (Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *DbTx) Commit() error {
	return t.tx.Commit()
}

func (t *DbTx) Rollback() error {
	return t.tx.Rollback()
}
