package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
	"github.com/exordiom/talent-training/pkg/store"
)

type row map[string]json.RawMessage

// DefaultUniqueKeys mirrors the unique indexes declared on the v1 types.
var DefaultUniqueKeys = map[string][][]string{
	v1.ProfilesTable:         {{"email"}},
	v1.TrainingProgressTable: {{"user_id", "section_id"}},
	v1.QuizAttemptsTable:     {{"user_id", "attempt_number"}},
}

// MemStore keeps records in process memory. Rows are held in their JSON encoding so the
// json tags of the v1 types act as column names, the same way the gorm tags do for
// gormstore.
type MemStore struct {
	mu         sync.RWMutex
	tables     map[string]map[string]row
	order      map[string][]string
	uniqueKeys map[string][][]string
}

var _ store.Store = &MemStore{}

func New() *MemStore {
	return &MemStore{
		tables:     make(map[string]map[string]row),
		order:      make(map[string][]string),
		uniqueKeys: DefaultUniqueKeys,
	}
}

func (m *MemStore) GetByID(ctx context.Context, id string, out v1.Record) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.tables[out.TableName()][id]
	if !ok {
		return hferrors.NewNotFound(fmt.Sprintf("%s %s not found", out.TableName(), id))
	}
	return decode([]row{r}, out, true)
}

func (m *MemStore) Query(ctx context.Context, filter store.Filter, out interface{}) error {
	table, err := tableOf(out)
	if err != nil {
		return err
	}

	want := make(map[string]json.RawMessage, len(filter.Equals))
	for col, val := range filter.Equals {
		raw, err := json.Marshal(val)
		if err != nil {
			return errors.Wrapf(hferrors.NewStorage(err.Error()), "encoding filter on %s", col)
		}
		want[col] = raw
	}

	m.mu.RLock()
	var matched []row
	for _, id := range m.order[table] {
		r := m.tables[table][id]
		if matches(r, want) {
			matched = append(matched, r)
		}
	}
	m.mu.RUnlock()

	if filter.OrderBy != nil {
		col := filter.OrderBy.Column
		desc := filter.OrderBy.Descending
		sort.SliceStable(matched, func(i, j int) bool {
			c := compare(matched[i][col], matched[j][col])
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return decode(matched, out, false)
}

func (m *MemStore) Insert(ctx context.Context, rec v1.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(rec)
}

func (m *MemStore) insertLocked(rec v1.Record) error {
	if rec.GetId() == "" {
		rec.SetId(uuid.NewString())
	}
	table := rec.TableName()
	r, err := encode(rec)
	if err != nil {
		return err
	}
	if _, exists := m.tables[table][rec.GetId()]; exists {
		return hferrors.NewAlreadyExists(fmt.Sprintf("%s %s already exists", table, rec.GetId()))
	}
	if keys, dup := m.duplicateLocked(table, r, ""); dup {
		return hferrors.NewAlreadyExists(fmt.Sprintf("%s with unique key (%s) already exists", table, strings.Join(keys, ", ")))
	}
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]row)
	}
	m.tables[table][rec.GetId()] = r
	m.order[table] = append(m.order[table], rec.GetId())
	glog.V(5).Infof("memstore: inserted %s %s", table, rec.GetId())
	return nil
}

func (m *MemStore) Update(ctx context.Context, rec v1.Record, id string, patch map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := rec.TableName()
	existing, ok := m.tables[table][id]
	if !ok {
		return hferrors.NewNotFound(fmt.Sprintf("%s %s not found", table, id))
	}
	updated := make(row, len(existing))
	for k, v := range existing {
		updated[k] = v
	}
	for col, val := range patch {
		raw, err := json.Marshal(val)
		if err != nil {
			return errors.Wrapf(hferrors.NewStorage(err.Error()), "encoding %s.%s", table, col)
		}
		updated[col] = raw
	}
	if keys, dup := m.duplicateLocked(table, updated, id); dup {
		return hferrors.NewAlreadyExists(fmt.Sprintf("%s with unique key (%s) already exists", table, strings.Join(keys, ", ")))
	}
	m.tables[table][id] = updated
	return nil
}

func (m *MemStore) Upsert(ctx context.Context, rec v1.Record, on store.OnConflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := rec.TableName()
	if rec.GetId() == "" {
		rec.SetId(uuid.NewString())
	}
	r, err := encode(rec)
	if err != nil {
		return err
	}

	for _, id := range m.order[table] {
		existing := m.tables[table][id]
		if !sameKey(existing, r, on.Keys) {
			continue
		}
		for _, col := range on.Update {
			existing[col] = r[col]
		}
		for _, col := range on.Keep {
			if isNull(existing[col]) {
				existing[col] = r[col]
			}
		}
		glog.V(5).Infof("memstore: upserted existing %s %s", table, id)
		return decode([]row{existing}, rec, true)
	}
	return m.insertLocked(rec)
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

func (m *MemStore) duplicateLocked(table string, r row, skipId string) ([]string, bool) {
	for _, keys := range m.uniqueKeys[table] {
		for id, existing := range m.tables[table] {
			if id == skipId {
				continue
			}
			if sameKey(existing, r, keys) {
				return keys, true
			}
		}
	}
	return nil, false
}

func sameKey(a, b row, keys []string) bool {
	if len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if !bytes.Equal(a[k], b[k]) {
			return false
		}
	}
	return true
}

func matches(r row, want map[string]json.RawMessage) bool {
	for col, val := range want {
		if !bytes.Equal(r[col], val) {
			return false
		}
	}
	return true
}

// compare orders two encoded column values: numbers numerically, everything else by
// their encoded form, which keeps strings and RFC 3339 timestamps in natural order.
func compare(a, b json.RawMessage) int {
	var fa, fb float64
	if json.Unmarshal(a, &fa) == nil && json.Unmarshal(b, &fb) == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return bytes.Compare(a, b)
}

func encode(rec v1.Record) (row, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrapf(hferrors.NewStorage(err.Error()), "encoding %s", rec.TableName())
	}
	r := row{}
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, errors.Wrapf(hferrors.NewStorage(err.Error()), "encoding %s", rec.TableName())
	}
	return r, nil
}

func decode(rows []row, out interface{}, single bool) error {
	var raw []byte
	var err error
	if single {
		raw, err = json.Marshal(rows[0])
	} else {
		if rows == nil {
			rows = []row{}
		}
		raw, err = json.Marshal(rows)
	}
	if err != nil {
		return hferrors.NewStorage(err.Error())
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return hferrors.NewStorage(err.Error())
	}
	return nil
}

func tableOf(out interface{}) (string, error) {
	t := reflect.TypeOf(out)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Slice {
		return "", hferrors.NewStorage(fmt.Sprintf("query target must be a pointer to a slice, got %T", out))
	}
	elem := t.Elem().Elem()
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	rec, ok := reflect.New(elem).Interface().(v1.Record)
	if !ok {
		return "", hferrors.NewStorage(fmt.Sprintf("%s is not a record type", elem))
	}
	return rec.TableName(), nil
}
