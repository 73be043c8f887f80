// Package migrate implements spec.md §6's schema migration registry:
// documents carry a monotonic schema-version number, and each version step
// is a registered pure function over the full table-data set. Grounded on
// original_source/sandbox/grist/schema.py, which keeps exactly this shape —
// a module-level dict of version -> migration function, applied in order
// up to the document's declared SCHEMA_VERSION.
package migrate

import "fmt"

// TableData mirrors the shape fetch_table/BulkAddRecord use (§6): column id
// -> parallel slice of values, alongside the row ids those slices index.
type TableData struct {
	TableID string
	RowIDs  []int64
	Columns map[string][]interface{}
}

// TableSet is every table's data, keyed by table id, as migrations see it.
type TableSet map[string]*TableData

// MigrationFunc transforms the full table set from one schema version to
// the next. It must not mutate its input in place; return a new TableSet.
type MigrationFunc func(in TableSet) (TableSet, error)

// Registry holds one migration function per target version.
type Registry struct {
	steps map[int]MigrationFunc
}

// NewRegistry constructs an empty migration registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[int]MigrationFunc)}
}

// Register adds the migration that brings a document from version-1 to
// version. Registering the same version twice replaces the prior step.
func (r *Registry) Register(version int, fn MigrationFunc) {
	r.steps[version] = fn
}

// ErrMissingStep reports a migration gap: no registered function advances
// the document past fromVersion on the way to target.
type ErrMissingStep struct {
	FromVersion int
}

func (e *ErrMissingStep) Error() string {
	return fmt.Sprintf("migrate: no migration registered for version %d", e.FromVersion+1)
}

// MigrateTo runs every registered step from fromVersion+1 up to and
// including target, in order, against tables, returning the fully migrated
// TableSet, which on success represents version target.
func (r *Registry) MigrateTo(fromVersion, target int, tables TableSet) (TableSet, error) {
	cur := tables
	for v := fromVersion + 1; v <= target; v++ {
		step, ok := r.steps[v]
		if !ok {
			return nil, &ErrMissingStep{FromVersion: v - 1}
		}
		next, err := step(cur)
		if err != nil {
			return nil, fmt.Errorf("migrate: step to version %d: %w", v, err)
		}
		cur = next
	}
	return cur, nil
}

// Latest returns the highest version number with a registered step, i.e.
// the version a fresh document should declare.
func (r *Registry) Latest() int {
	max := 0
	for v := range r.steps {
		if v > max {
			max = v
		}
	}
	return max
}
