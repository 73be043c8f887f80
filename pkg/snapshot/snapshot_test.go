package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/engine"
)

func TestSQLiteSinkRoundTrips(t *testing.T) {
	sink, err := OpenSQLiteSink(":memory:")
	require.NoError(t, err)
	defer sink.Close()

	testRecorderRoundTrip(t, sink)
}

func TestBadgerSinkRoundTrips(t *testing.T) {
	sink, err := OpenBadgerSink("")
	require.NoError(t, err)
	defer sink.Close()

	testRecorderRoundTrip(t, sink)
}

func testRecorderRoundTrip(t *testing.T, sink Sink) {
	t.Helper()
	ctx := context.Background()

	d := engine.New(nil)
	sum := actionsummary.New()
	_, err := d.ApplyDataAction(&action.AddTable{
		Table: "Items",
		Columns: []action.ColumnDef{
			{ColID: "Name", Spec: action.ColumnSpec{Kind: cellvalue.KindText}},
		},
	}, sum)
	require.NoError(t, err)

	rec := NewRecorder(sink)
	require.NoError(t, rec.Record(ctx, sum))

	sum2 := actionsummary.New()
	_, err = d.ApplyDataAction(&action.AddRecord{
		Table:  "Items",
		RowID:  0,
		Values: map[string]interface{}{"Name": "Widget"},
	}, sum2)
	require.NoError(t, err)
	require.NoError(t, rec.Record(ctx, sum2))

	switch s := sink.(type) {
	case *SQLiteSink:
		records, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, records)
	case *BadgerSink:
		records, err := s.Fetch(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, records)
	}
}
