// Package summary implements spec.md's supplemented summary-table feature
// (SPEC_FULL.md C.5): a summary table groups a source table by one or more
// column values and exposes, per distinct combination, a `group` RefList
// back to the matching source rows plus any number of aggregate formula
// columns computed over that group. Grounded on
// original_source/sandbox/grist/summary.py's SummaryActions: the same
// encode/decode-table-name scheme, the same flattened groupby column type
// rule, and the same "group" RefList formula shape
// (`table.getSummarySourceGroup(rec)` there, `Source.lookupRecords(...)`
// here, since this engine resolves lookups directly rather than through a
// separate LookupMapColumn helper table).
package summary

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/engine"
	"github.com/kasuganosora/gridengine/pkg/useraction"
)

// EncodeSummaryTableName builds a summary table id that reliably encodes
// its source table, prefixing the source name's length so a decoder can
// recover it even if a disambiguating numeric suffix was appended
// (§ summary.py's encode_summary_table_name).
func EncodeSummaryTableName(sourceTableID string) string {
	return fmt.Sprintf("GristSummary_%d_%s", len(sourceTableID), sourceTableID)
}

var summaryNameRe = regexp.MustCompile(`^GristSummary_(\d+)_`)

// DecodeSummaryTableName recovers the source table id from a summary table
// id built by EncodeSummaryTableName, tolerating a numeric disambiguation
// suffix Grist's AddTable uniquification might have appended.
func DecodeSummaryTableName(summaryTableID string) (string, bool) {
	m := summaryNameRe.FindStringSubmatchIndex(summaryTableID)
	if m == nil {
		return "", false
	}
	length, err := strconv.Atoi(summaryTableID[m[2]:m[3]])
	if err != nil {
		return "", false
	}
	start := m[1]
	if start+length > len(summaryTableID) {
		return "", false
	}
	return summaryTableID[start : start+length], true
}

// GroupByColType flattens a list-type source column into the scalar type a
// summary table's groupby column holds: ChoiceList -> Choice,
// RefList:X -> Ref:X, everything else unchanged (summary.py's
// summary_groupby_col_type).
func GroupByColType(sourceKind cellvalue.Kind) cellvalue.Kind {
	switch sourceKind {
	case cellvalue.KindChoiceList:
		return cellvalue.KindChoice
	case cellvalue.KindRefList:
		return cellvalue.KindRef
	default:
		return sourceKind
	}
}

// Aggregate names one formula column a summary table should carry over its
// `group` RefList, e.g. {ColID: "TotalAmount", Formula: "SUM($group.Amount)"}.
type Aggregate struct {
	ColID   string
	Formula string
	Spec    action.ColumnSpec // Kind only; Formula/IsFormula are filled in by CreateOrUpdate
}

// groupColFormula builds the `group` column's lookup formula: the source
// table filtered to rows whose groupBy columns equal this summary row's own
// (§ summary.py's getSummarySourceGroup, re-expressed directly as a
// lookupRecords call since this engine has no separate LookupMapColumn).
func groupColFormula(sourceTableID string, groupByCols []string) string {
	var b strings.Builder
	b.WriteString(sourceTableID)
	b.WriteString(".lookupRecords(")
	for i, col := range groupByCols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=$%s", col, col)
	}
	b.WriteString(")")
	return b.String()
}

// CreateOrUpdate finds or creates the summary table for sourceTableID
// grouped by groupByCols with the given aggregates, returning its table id.
// The table id encodes only the source table, so an existing summary table
// of sourceTableID is reused whatever its groupby columns are; groupByCols
// is only used when the table is first created. On reuse, any aggregate
// columns missing from it are added; existing columns are left
// alone (§ summary.py's _get_or_add_columns: "not add any new columns, but
// only return existing ones" on the common path, new columns only appear
// when aggregates themselves change).
func CreateOrUpdate(doc *engine.Document, ua *useraction.UserActions, sourceTableID string, groupByCols []string, aggregates []Aggregate, sum *actionsummary.Summary) (string, error) {
	srcTbl := doc.Table(sourceTableID)
	if srcTbl == nil {
		return "", fmt.Errorf("summary: unknown source table %s", sourceTableID)
	}
	srcSpec, _ := doc.Schema().Table(sourceTableID)

	summaryID := EncodeSummaryTableName(sourceTableID)
	if doc.Table(summaryID) == nil {
		cols := make([]action.ColumnDef, 0, len(groupByCols)+len(aggregates)+1)
		for _, gc := range groupByCols {
			srcColSpec, ok := srcSpec.Column(gc)
			if !ok {
				return "", fmt.Errorf("summary: source table %s has no column %s", sourceTableID, gc)
			}
			kind := GroupByColType(srcColSpec.Type.Kind())
			spec := action.ColumnSpec{Kind: kind}
			if kind == cellvalue.KindRef {
				spec.Target = refTargetOf(srcColSpec.Type)
			}
			cols = append(cols, action.ColumnDef{ColID: gc, Spec: spec})
		}
		cols = append(cols, action.ColumnDef{
			ColID: "group",
			Spec: action.ColumnSpec{
				Kind:      cellvalue.KindRefList,
				Target:    sourceTableID,
				IsFormula: true,
				Formula:   groupColFormula(sourceTableID, groupByCols),
			},
		})
		for _, agg := range aggregates {
			spec := agg.Spec
			spec.IsFormula = true
			spec.Formula = agg.Formula
			cols = append(cols, action.ColumnDef{ColID: agg.ColID, Spec: spec})
		}
		if _, err := ua.AddTable(summaryID, cols, sum); err != nil {
			return "", err
		}
		return summaryID, nil
	}

	summarySpec, _ := doc.Schema().Table(summaryID)
	for _, agg := range aggregates {
		if _, ok := summarySpec.Column(agg.ColID); ok {
			continue
		}
		spec := agg.Spec
		spec.IsFormula = true
		spec.Formula = agg.Formula
		if _, err := ua.AddColumn(summaryID, agg.ColID, agg.ColID, spec, true, sum); err != nil {
			return "", err
		}
	}
	return summaryID, nil
}

func refTargetOf(typ cellvalue.Type) string {
	if t, ok := typ.(interface{ Target() string }); ok {
		return t.Target()
	}
	return ""
}

// groupKey is a tuple of groupby column values, used to dedup distinct
// combinations when materializing summary rows.
type groupKey string

func makeGroupKey(values []interface{}) groupKey {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		fmt.Fprintf(&b, "%v", v)
	}
	return groupKey(b.String())
}

// Syncer materializes one summary row per distinct groupby-value
// combination found in the source table. Grist instead creates summary
// rows lazily the first time a formula's lookup misses
// (lookupOrAddDerived), guarded by is_triggered_by_table_action against
// recursing into its own recalculation; this engine has no lazy-row-create
// hook inside formula evaluation, so Syncer is an explicit, idempotent pass
// the caller runs after any change to the source table's groupby columns,
// guarded the same way: Sync refuses to reenter itself.
type Syncer struct {
	mu      sync.Mutex
	running bool
}

// ErrReentrant is returned when Sync is called while already running
// (e.g. from a formula or a trigger it is itself the cause of).
var ErrReentrant = fmt.Errorf("summary: Sync called reentrantly")

// Sync ensures every distinct combination of groupByCols present in
// sourceTableID has a corresponding row in summaryTableID, adding any that
// are missing. It does not remove summary rows whose combination no longer
// occurs in the source, matching summary.py's own behavior of leaving
// orphaned summary rows with an empty group until they're cleaned up by a
// separate pass.
func (s *Syncer) Sync(doc *engine.Document, ua *useraction.UserActions, sourceTableID, summaryTableID string, groupByCols []string, sum *actionsummary.Summary) (int, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0, ErrReentrant
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	srcTbl := doc.Table(sourceTableID)
	summaryTbl := doc.Table(summaryTableID)
	if srcTbl == nil || summaryTbl == nil {
		return 0, fmt.Errorf("summary: missing source or summary table")
	}

	existing := make(map[groupKey]bool)
	for _, row := range summaryTbl.RowIDs() {
		values := make([]interface{}, len(groupByCols))
		for i, col := range groupByCols {
			values[i] = summaryTbl.Column(col).Get(row)
		}
		existing[makeGroupKey(values)] = true
	}

	var keys []groupKey
	combos := make(map[groupKey][]interface{})
	for _, row := range srcTbl.RowIDs() {
		values := make([]interface{}, len(groupByCols))
		for i, col := range groupByCols {
			values[i] = srcTbl.Column(col).Get(row)
		}
		key := makeGroupKey(values)
		if _, ok := combos[key]; !ok {
			combos[key] = values
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	added := 0
	for _, key := range keys {
		if existing[key] {
			continue
		}
		values := combos[key]
		colValues := make(map[string]interface{}, len(groupByCols))
		for i, col := range groupByCols {
			colValues[col] = values[i]
		}
		if _, err := ua.AddRecord(summaryTableID, colValues, sum); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}
