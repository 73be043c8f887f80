package table

import "github.com/kasuganosora/gridengine/pkg/cellvalue"

// ColumnSpec is the schema-held description of a column, independent of its
// live storage (§3 "Schema"): type, formula status, and formula source.
type ColumnSpec struct {
	Type           cellvalue.Type
	IsFormula      bool
	Formula        string
	DefaultFormula string
	IsPrivate      bool
}

// TableSpec is the ordered schema for one table.
type TableSpec struct {
	TableID  string
	colOrder []string
	cols     map[string]ColumnSpec
}

// NewTableSpec constructs an empty table schema.
func NewTableSpec(tableID string) *TableSpec {
	return &TableSpec{TableID: tableID, cols: make(map[string]ColumnSpec)}
}

// SetColumn inserts or replaces a column's spec, appending to schema order
// if it's new.
func (s *TableSpec) SetColumn(colID string, spec ColumnSpec) {
	if _, ok := s.cols[colID]; !ok {
		s.colOrder = append(s.colOrder, colID)
	}
	s.cols[colID] = spec
}

// RemoveColumn drops a column's spec.
func (s *TableSpec) RemoveColumn(colID string) {
	delete(s.cols, colID)
	for i, id := range s.colOrder {
		if id == colID {
			s.colOrder = append(s.colOrder[:i], s.colOrder[i+1:]...)
			return
		}
	}
}

// RenameColumn updates the external id of a spec entry, preserving order.
func (s *TableSpec) RenameColumn(oldID, newID string) {
	spec, ok := s.cols[oldID]
	if !ok {
		return
	}
	delete(s.cols, oldID)
	s.cols[newID] = spec
	for i, id := range s.colOrder {
		if id == oldID {
			s.colOrder[i] = newID
			return
		}
	}
}

// Column returns a column's spec and whether it exists.
func (s *TableSpec) Column(colID string) (ColumnSpec, bool) {
	spec, ok := s.cols[colID]
	return spec, ok
}

// ColumnIDs returns column ids in schema order.
func (s *TableSpec) ColumnIDs() []string {
	out := make([]string, len(s.colOrder))
	copy(out, s.colOrder)
	return out
}

// Schema is the document-wide ordered map tableId -> TableSpec (§3
// "Schema"), held separately from live tables to drive code generation.
type Schema struct {
	tableOrder []string
	tables     map[string]*TableSpec
}

// NewSchema constructs an empty schema.
func NewSchema() *Schema {
	return &Schema{tables: make(map[string]*TableSpec)}
}

// AddTable registers a new table schema, appending to table order.
func (s *Schema) AddTable(spec *TableSpec) {
	if _, ok := s.tables[spec.TableID]; !ok {
		s.tableOrder = append(s.tableOrder, spec.TableID)
	}
	s.tables[spec.TableID] = spec
}

// RemoveTable drops a table's schema entry.
func (s *Schema) RemoveTable(tableID string) {
	delete(s.tables, tableID)
	for i, id := range s.tableOrder {
		if id == tableID {
			s.tableOrder = append(s.tableOrder[:i], s.tableOrder[i+1:]...)
			return
		}
	}
}

// RenameTable updates a table's id in schema order, preserving its spec.
func (s *Schema) RenameTable(oldID, newID string) {
	spec, ok := s.tables[oldID]
	if !ok {
		return
	}
	spec.TableID = newID
	delete(s.tables, oldID)
	s.tables[newID] = spec
	for i, id := range s.tableOrder {
		if id == oldID {
			s.tableOrder[i] = newID
			return
		}
	}
}

// Table returns a table's schema and whether it exists.
func (s *Schema) Table(tableID string) (*TableSpec, bool) {
	spec, ok := s.tables[tableID]
	return spec, ok
}

// TableIDs returns table ids in schema order.
func (s *Schema) TableIDs() []string {
	out := make([]string, len(s.tableOrder))
	copy(out, s.tableOrder)
	return out
}
