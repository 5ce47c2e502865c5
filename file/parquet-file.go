package file

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	pqgzip "github.com/parquet-go/parquet-go/compress/gzip"
	"github.com/parquet-go/parquet-go/format"
	"github.com/pkg/errors"

	"github.com/datamunge/taxipipe/constants"
	"github.com/datamunge/taxipipe/logger"
	"github.com/datamunge/taxipipe/stream"
)

// column couples the stream column with the parquet timestamp unit needed to
// decode raw int64 values.
type column struct {
	stream.Column
	tsUnit time.Duration
}

// ReadFrame loads a parquet artifact into an in-memory Frame.
// Column order follows the file schema; null values are absent from records.
func ReadFrame(log logger.Logger, path string) (*stream.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open parquet file")
	}
	defer func() { _ = fh.Close() }()
	st, err := fh.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "unable to stat parquet file")
	}
	pf, err := parquet.OpenFile(fh, st.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read parquet file %v", path)
	}
	fields := pf.Schema().Fields()
	cols := make([]column, len(fields))
	for i, f := range fields {
		cols[i] = fieldToColumn(f)
	}
	streamCols := make([]stream.Column, len(cols))
	for i := range cols {
		streamCols[i] = cols[i].Column
	}
	// Files we wrote carry the original column order in their metadata; the
	// schema itself is sorted by name.
	streamCols = orderColumns(streamCols, columnOrderMetadata(pf))
	frame := stream.NewFrame(streamCols)
	log.Debug("Reading parquet file ", path, " with ", len(cols), " columns")
	buf := make([]parquet.Row, constants.ParquetRowBatchSize)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				frame.AppendRow(rowToRecord(buf[i], cols))
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				_ = rows.Close()
				return nil, errors.Wrap(err, "unable to read parquet rows")
			}
			if n == 0 {
				break
			}
		}
		if err := rows.Close(); err != nil {
			return nil, errors.Wrap(err, "unable to close parquet row reader")
		}
	}
	log.Debug("Read ", frame.NumRows(), " rows from ", path)
	return frame, nil
}

// WriteFrame persists the Frame as a parquet file with gzip page compression.
// The file is written to a temporary path and renamed into place so a partial
// write never masquerades as a complete artifact.
func WriteFrame(log logger.Logger, path string, f *stream.Frame) error {
	schema, err := frameSchema(f)
	if err != nil {
		return err
	}
	tmpPath := path + constants.PartSuffix
	out, err := os.Create(tmpPath)
	if err != nil {
		return errors.Wrap(err, "unable to create parquet file")
	}
	// parquet.Group sorts its fields by name, so persist the frame's column
	// order in the file metadata for ReadFrame to restore.
	names := make([]string, 0, len(f.Columns()))
	for _, c := range f.Columns() {
		names = append(names, c.Name)
	}
	w := parquet.NewGenericWriter[map[string]interface{}](out, schema,
		parquet.Compression(&pqgzip.Codec{}),
		parquet.KeyValueMetadata(constants.ColumnOrderMetadataKey, strings.Join(names, ",")))
	buf := make([]map[string]interface{}, 0, constants.ParquetRowBatchSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		_, err := w.Write(buf)
		buf = buf[:0]
		return err
	}
	for _, rec := range f.Rows() {
		row := make(map[string]interface{}, rec.GetDataLen())
		for _, c := range f.Columns() {
			if v, ok := rec.GetDataOk(c.Name); ok && v != nil { // nulls are represented by absent keys.
				row[c.Name] = v
			}
		}
		buf = append(buf, row)
		if len(buf) == constants.ParquetRowBatchSize {
			if err := flush(); err != nil {
				_ = out.Close()
				_ = os.Remove(tmpPath)
				return errors.Wrap(err, "unable to write parquet rows")
			}
		}
	}
	if err := flush(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "unable to write parquet rows")
	}
	if err := w.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "unable to close parquet writer")
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "unable to close parquet file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "unable to move parquet file into place")
	}
	log.Debug("Wrote ", f.NumRows(), " rows to ", path)
	return nil
}

// fieldToColumn maps a parquet schema field onto coarse Frame column metadata.
func fieldToColumn(f parquet.Field) column {
	c := column{Column: stream.Column{Name: f.Name()}, tsUnit: time.Microsecond}
	t := f.Type()
	if lt := t.LogicalType(); lt != nil {
		switch {
		case lt.Timestamp != nil:
			c.Kind = stream.KindTimestamp
			c.tsUnit = timestampUnit(lt.Timestamp.Unit)
			return c
		case lt.UTF8 != nil:
			c.Kind = stream.KindString
			return c
		}
	}
	switch t.Kind() {
	case parquet.Boolean:
		c.Kind = stream.KindBool
	case parquet.Int32:
		c.Kind = stream.KindInt32
	case parquet.Int64:
		c.Kind = stream.KindInt64
	case parquet.Float, parquet.Double:
		c.Kind = stream.KindFloat64
	case parquet.ByteArray, parquet.FixedLenByteArray:
		c.Kind = stream.KindString
	default:
		c.Kind = stream.KindBytes
	}
	return c
}

func timestampUnit(u format.TimeUnit) time.Duration {
	switch {
	case u.Millis != nil:
		return time.Millisecond
	case u.Nanos != nil:
		return time.Nanosecond
	}
	return time.Microsecond
}

func rowToRecord(row parquet.Row, cols []column) stream.Record {
	rec := stream.NewRecord()
	for _, v := range row {
		ci := v.Column()
		if ci < 0 || ci >= len(cols) || v.IsNull() {
			continue
		}
		rec.SetData(cols[ci].Name, convertValue(cols[ci], v))
	}
	return rec
}

func convertValue(c column, v parquet.Value) interface{} {
	switch c.Kind {
	case stream.KindBool:
		return v.Boolean()
	case stream.KindInt32:
		return v.Int32()
	case stream.KindInt64:
		return v.Int64()
	case stream.KindFloat64:
		if v.Kind() == parquet.Float {
			return float64(v.Float())
		}
		return v.Double()
	case stream.KindString:
		return v.String()
	case stream.KindTimestamp:
		return epochToTime(v.Int64(), c.tsUnit)
	}
	return v.ByteArray()
}

func epochToTime(n int64, unit time.Duration) time.Time {
	switch unit {
	case time.Millisecond:
		return time.UnixMilli(n).UTC()
	case time.Nanosecond:
		return time.Unix(0, n).UTC()
	}
	return time.UnixMicro(n).UTC()
}

// columnOrderMetadata returns the column order recorded by WriteFrame, or ""
// for files from other producers.
func columnOrderMetadata(pf *parquet.File) string {
	v, _ := pf.Lookup(constants.ColumnOrderMetadataKey)
	return v
}

// orderColumns rearranges cols into the order named by csv. Columns not named
// keep their schema order at the end.
func orderColumns(cols []stream.Column, csv string) []stream.Column {
	if csv == "" {
		return cols
	}
	byName := make(map[string]stream.Column, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}
	out := make([]stream.Column, 0, len(cols))
	seen := make(map[string]bool, len(cols))
	for _, name := range strings.Split(csv, ",") {
		if c, ok := byName[name]; ok {
			out = append(out, c)
			seen[name] = true
		}
	}
	for _, c := range cols {
		if !seen[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// frameSchema builds a parquet schema with optional leaf columns matching the
// Frame column kinds.
func frameSchema(f *stream.Frame) (*parquet.Schema, error) {
	group := parquet.Group{}
	for _, c := range f.Columns() {
		var node parquet.Node
		switch c.Kind {
		case stream.KindBool:
			node = parquet.Leaf(parquet.BooleanType)
		case stream.KindInt32:
			node = parquet.Int(32)
		case stream.KindInt64:
			node = parquet.Int(64)
		case stream.KindFloat64:
			node = parquet.Leaf(parquet.DoubleType)
		case stream.KindString:
			node = parquet.String()
		case stream.KindBytes:
			node = parquet.Leaf(parquet.ByteArrayType)
		case stream.KindTimestamp:
			node = parquet.Timestamp(parquet.Microsecond)
		default:
			return nil, errors.Errorf("column %v has unsupported kind %v", c.Name, c.Kind)
		}
		group[c.Name] = parquet.Optional(node)
	}
	return parquet.NewSchema("trips", group), nil
}
