package store

import (
	"context"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
)

// Store is the persistent record store the training core runs on. Implementations map
// duplicate unique keys to errors.NewAlreadyExists, missing rows to errors.NewNotFound and
// every other failure to errors.NewStorage.
type Store interface {
	// GetByID loads the row with the given id into out.
	GetByID(ctx context.Context, id string, out v1.Record) error
	// Query loads every row matching filter into out, which must be a pointer to a slice of
	// a record type.
	Query(ctx context.Context, filter Filter, out interface{}) error
	// Insert writes a new row. An empty id is replaced by a generated one.
	Insert(ctx context.Context, rec v1.Record) error
	// Update applies patch to the row with the given id in rec's table.
	Update(ctx context.Context, rec v1.Record, id string, patch map[string]interface{}) error
	// Upsert inserts rec, or when a row with the same on.Keys exists, resolves the conflict
	// as on describes. Either way rec is left holding the stored row, existing id included.
	Upsert(ctx context.Context, rec v1.Record, on OnConflict) error
}

// OnConflict says how Upsert treats a row that already holds the same unique key.
type OnConflict struct {
	Keys []string
	// Update columns are overwritten with the new values.
	Update []string
	// Keep columns are only written while the stored value is null, so the first value
	// set wins even between racing writers.
	Keep []string
}

type Order struct {
	Column     string
	Descending bool
}

// Filter selects rows by column equality. Zero value matches every row.
type Filter struct {
	Equals  map[string]interface{}
	OrderBy *Order
	Limit   int
}

func Where(column string, value interface{}) Filter {
	return Filter{}.And(column, value)
}

func (f Filter) And(column string, value interface{}) Filter {
	eq := make(map[string]interface{}, len(f.Equals)+1)
	for k, v := range f.Equals {
		eq[k] = v
	}
	eq[column] = value
	f.Equals = eq
	return f
}

func (f Filter) Asc(column string) Filter {
	f.OrderBy = &Order{Column: column}
	return f
}

func (f Filter) Desc(column string) Filter {
	f.OrderBy = &Order{Column: column, Descending: true}
	return f
}

func (f Filter) First(n int) Filter {
	f.Limit = n
	return f
}
