package rdbms

import (
	"context"
	"fmt"
	"strings"

	"github.com/datamunge/taxipipe/logger"
	"github.com/datamunge/taxipipe/rdbms/shared"
	"github.com/datamunge/taxipipe/stream"
	"github.com/pkg/errors"
)

// pgTypes maps stream field kinds onto warehouse column types.
var pgTypes = map[stream.FieldKind]string{
	stream.KindBool:      "boolean",
	stream.KindInt32:     "integer",
	stream.KindInt64:     "bigint",
	stream.KindFloat64:   "double precision",
	stream.KindString:    "text",
	stream.KindBytes:     "bytea",
	stream.KindTimestamp: "timestamp",
}

// CreateSchemaIfNotExists ensures the target schema exists before any table DDL runs.
func CreateSchemaIfNotExists(ctx context.Context, log logger.Logger, db shared.Connector, schema string) error {
	log.Debug("Ensuring schema exists: ", schema)
	_, err := db.ExecContext(ctx, fmt.Sprintf("create schema if not exists %v", schema))
	if err != nil {
		return errors.Wrapf(err, "unable to create schema %q", schema)
	}
	return nil
}

// TableExists reports whether schema.table is present in the warehouse catalog.
func TableExists(ctx context.Context, log logger.Logger, db shared.Connector, st SchemaTable) (bool, error) {
	var exists bool
	row := db.QueryRowContext(ctx,
		"select exists (select 1 from information_schema.tables where table_schema = $1 and table_name = $2)",
		st.GetSchema(), st.GetTable())
	if err := row.Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "unable to check existence of table %v", st.String())
	}
	log.Debug("Table ", st.String(), " exists = ", exists)
	return exists, nil
}

// DropTableIfExists removes schema.table, tolerating its absence.
func DropTableIfExists(ctx context.Context, log logger.Logger, db shared.Connector, st SchemaTable) error {
	log.Info("Dropping table if it exists: ", st.String())
	_, err := db.ExecContext(ctx, fmt.Sprintf("drop table if exists %v", st.String()))
	if err != nil {
		return errors.Wrapf(err, "unable to drop table %v", st.String())
	}
	return nil
}

// CreateTableIfNotExists builds schema.table with one nullable column per stream column,
// preserving the column order of the supplied slice.
func CreateTableIfNotExists(ctx context.Context, log logger.Logger, db shared.Connector, st SchemaTable, cols []stream.Column) error {
	if len(cols) == 0 {
		return errors.New("unable to create a table with no columns")
	}
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		pgType, ok := pgTypes[c.Kind]
		if !ok {
			return errors.Errorf("column %q has unsupported kind %v", c.Name, c.Kind)
		}
		defs = append(defs, fmt.Sprintf("%v %v", c.Name, pgType))
	}
	sqlStmt := fmt.Sprintf("create table if not exists %v (%v)", st.String(), strings.Join(defs, ", "))
	log.Debug("Creating table with SQL: ", sqlStmt)
	if _, err := db.ExecContext(ctx, sqlStmt); err != nil {
		return errors.Wrapf(err, "unable to create table %v", st.String())
	}
	return nil
}
