package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/docmodel"
	"github.com/kasuganosora/gridengine/pkg/engine"
	"github.com/kasuganosora/gridengine/pkg/useraction"
)

func TestEncodeDecodeSummaryTableName(t *testing.T) {
	enc := EncodeSummaryTableName("Orders")
	assert.Equal(t, "GristSummary_6_Orders", enc)

	src, ok := DecodeSummaryTableName(enc)
	require.True(t, ok)
	assert.Equal(t, "Orders", src)

	src, ok = DecodeSummaryTableName(enc + "2")
	require.True(t, ok)
	assert.Equal(t, "Orders", src)

	_, ok = DecodeSummaryTableName("Orders")
	assert.False(t, ok)
}

func TestGroupByColType(t *testing.T) {
	assert.Equal(t, cellvalue.KindChoice, GroupByColType(cellvalue.KindChoiceList))
	assert.Equal(t, cellvalue.KindRef, GroupByColType(cellvalue.KindRefList))
	assert.Equal(t, cellvalue.KindText, GroupByColType(cellvalue.KindText))
}

func TestCreateOrUpdateBuildsGroupAndAggregateColumns(t *testing.T) {
	d := engine.New(nil)
	dm := docmodel.New(d)
	sum := actionsummary.New()
	require.NoError(t, dm.EnsureMetaTables(sum))
	ua := useraction.New(d, dm)

	_, err := d.ApplyDataAction(&action.AddTable{
		Table: "Orders",
		Columns: []action.ColumnDef{
			{ColID: "Year", Spec: action.ColumnSpec{Kind: cellvalue.KindInt}},
			{ColID: "Amount", Spec: action.ColumnSpec{Kind: cellvalue.KindNumeric}},
		},
	}, sum)
	require.NoError(t, err)

	summaryID, err := CreateOrUpdate(d, ua, "Orders", []string{"Year"}, []Aggregate{
		{ColID: "TotalAmount", Formula: "SUM($group.Amount)"},
		{ColID: "Count", Formula: "LEN($group.Amount)"},
	}, sum)
	require.NoError(t, err)
	assert.Equal(t, "GristSummary_6_Orders", summaryID)

	spec, ok := d.Schema().Table(summaryID)
	require.True(t, ok)
	_, hasYear := spec.Column("Year")
	assert.True(t, hasYear)
	group, hasGroup := spec.Column("group")
	require.True(t, hasGroup)
	assert.Equal(t, "Orders.lookupRecords(Year=$Year)", group.Formula)
	totalCol, hasTotal := spec.Column("TotalAmount")
	require.True(t, hasTotal)
	assert.Equal(t, "SUM($group.Amount)", totalCol.Formula)
}

func TestSyncerMaterializesDistinctGroups(t *testing.T) {
	d := engine.New(nil)
	dm := docmodel.New(d)
	sum := actionsummary.New()
	require.NoError(t, dm.EnsureMetaTables(sum))
	ua := useraction.New(d, dm)

	_, err := d.ApplyDataAction(&action.AddTable{
		Table: "Orders",
		Columns: []action.ColumnDef{
			{ColID: "Year", Spec: action.ColumnSpec{Kind: cellvalue.KindInt}},
			{ColID: "Amount", Spec: action.ColumnSpec{Kind: cellvalue.KindNumeric}},
		},
	}, sum)
	require.NoError(t, err)

	summaryID, err := CreateOrUpdate(d, ua, "Orders", []string{"Year"}, []Aggregate{
		{ColID: "TotalAmount", Formula: "SUM($group.Amount)"},
	}, sum)
	require.NoError(t, err)

	_, err = ua.AddRecord("Orders", map[string]interface{}{"Year": int64(2020), "Amount": 10.0}, sum)
	require.NoError(t, err)
	_, err = ua.AddRecord("Orders", map[string]interface{}{"Year": int64(2020), "Amount": 5.0}, sum)
	require.NoError(t, err)
	_, err = ua.AddRecord("Orders", map[string]interface{}{"Year": int64(2021), "Amount": 7.0}, sum)
	require.NoError(t, err)

	var syncer Syncer
	added, err := syncer.Sync(d, ua, "Orders", summaryID, []string{"Year"}, sum)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = syncer.Sync(d, ua, "Orders", summaryID, []string{"Year"}, sum)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	d.Calculate(sum)

	var totals []float64
	for _, row := range d.Table(summaryID).RowIDs() {
		if row == 0 { // the empty record, not a group
			continue
		}
		totals = append(totals, d.Table(summaryID).Column("TotalAmount").Get(row).(float64))
	}
	assert.ElementsMatch(t, []float64{15.0, 7.0}, totals)
}
