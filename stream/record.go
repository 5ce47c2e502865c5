package stream

import (
	om "github.com/cevaris/ordered_map"
)

// NewRecord creates a new Record and returns it by value as we expect these
// records to move between pipeline stages by value.
func NewRecord() Record {
	return Record{
		data: make(map[string]interface{}),
	}
}

// Record holds one row of data. Values can represent null database values as
// nil interfaces.
type Record struct {
	data map[string]interface{}
}

func (sr Record) SetData(name string, value interface{}) {
	sr.data[name] = value
}

func (sr Record) GetData(name string) interface{} {
	return sr.data[name]
}

func (sr Record) GetDataOk(name string) (interface{}, bool) {
	v, ok := sr.data[name]
	return v, ok
}

func (sr Record) GetDataLen() int {
	return len(sr.data)
}

// GetDataByKeys appends the record's values for the ordered map keys to l in
// key order, using nil where the record has no value for a key.
func (sr Record) GetDataByKeys(keys *om.OrderedMap, l *[]interface{}) {
	iter := keys.IterFunc()
	if iter == nil {
		return
	}
	for kv, ok := iter(); ok; kv, ok = iter() {
		*l = append(*l, sr.data[kv.Key.(string)])
	}
}
