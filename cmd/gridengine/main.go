// Command gridengine is a small demo harness for the document engine: it
// builds an in-memory document, applies a fixed bundle of user actions
// through pkg/useraction, recalculates, and prints the resulting action
// summary and table contents as JSON. Grounded on the teacher's
// cmd/service/main.go: a -config flag loaded via config.Load (config.Default
// when the flag is empty),
// a one-shot startup log banner, then handing off to the library code that
// does the actual work.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/config"
	"github.com/kasuganosora/gridengine/pkg/docmodel"
	"github.com/kasuganosora/gridengine/pkg/engine"
	"github.com/kasuganosora/gridengine/pkg/snapshot"
	"github.com/kasuganosora/gridengine/pkg/useraction"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file (optional; defaults applied if unset)")
	sqliteSnapshot := flag.String("sqlite-snapshot", "", "optional path to a SQLite file to mirror applied actions into (':memory:' for a throwaway run)")
	badgerSnapshot := flag.String("badger-snapshot", "", "optional directory to mirror applied actions into via Badger")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("gridengine: %v", err)
	}

	doc := engine.New(cfg)
	dm := docmodel.New(doc)
	ua := useraction.New(doc, dm)

	ctx := context.Background()
	rec, err := openRecorder(*sqliteSnapshot, *badgerSnapshot)
	if err != nil {
		log.Fatalf("gridengine: %v", err)
	}
	if rec != nil {
		defer rec.Close()
	}

	sum, err := runDemo(ctx, doc, ua, rec)
	if err != nil {
		log.Fatalf("gridengine: demo bundle failed: %v", err)
	}

	fmt.Println("=== Items ===")
	printTable(doc, "Items")
	fmt.Println("=== calc summary ===")
	printJSON(sum.CalcActions())
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openRecorder(sqlitePath, badgerDir string) (*snapshot.Recorder, error) {
	switch {
	case sqlitePath != "":
		sink, err := snapshot.OpenSQLiteSink(sqlitePath)
		if err != nil {
			return nil, err
		}
		return snapshot.NewRecorder(sink), nil
	case badgerDir != "":
		sink, err := snapshot.OpenBadgerSink(badgerDir)
		if err != nil {
			return nil, err
		}
		return snapshot.NewRecorder(sink), nil
	default:
		return nil, nil
	}
}

// runDemo applies a fixed bundle of user actions exercising the add-record,
// rename-propagation, and recalculation paths described in
// spec.md §8, returning the summary of the final action.
func runDemo(ctx context.Context, doc *engine.Document, ua *useraction.UserActions, rec *snapshot.Recorder) (*actionsummary.Summary, error) {
	sum := actionsummary.New()
	if _, err := doc.ApplyDataAction(&action.AddTable{
		Table: "Items",
		Columns: []action.ColumnDef{
			{ColID: "Name", Spec: action.ColumnSpec{Kind: cellvalue.KindText}},
			{ColID: "Price", Spec: action.ColumnSpec{Kind: cellvalue.KindNumeric}},
			{ColID: "Quantity", Spec: action.ColumnSpec{Kind: cellvalue.KindInt}},
			{ColID: "Total", Spec: action.ColumnSpec{
				Kind: cellvalue.KindNumeric, IsFormula: true, Formula: "$Price * $Quantity",
			}},
		},
	}, sum); err != nil {
		return nil, err
	}
	if err := recordIfSet(ctx, rec, sum); err != nil {
		return nil, err
	}

	sum = actionsummary.New()
	if _, err := ua.AddRecord("Items", map[string]interface{}{
		"Name": "Widget", "Price": 4.5, "Quantity": int64(3),
	}, sum); err != nil {
		return nil, err
	}
	if _, err := ua.AddRecord("Items", map[string]interface{}{
		"Name": "Gadget", "Price": 12.0, "Quantity": int64(2),
	}, sum); err != nil {
		return nil, err
	}
	if err := recordIfSet(ctx, rec, sum); err != nil {
		return nil, err
	}

	sum = actionsummary.New()
	if err := ua.RenameColumn("Items", "Price", "UnitPrice", sum); err != nil {
		return nil, err
	}
	if err := recordIfSet(ctx, rec, sum); err != nil {
		return nil, err
	}

	sum = actionsummary.New()
	doc.Calculate(sum)
	if err := recordIfSet(ctx, rec, sum); err != nil {
		return nil, err
	}
	return sum, nil
}

func recordIfSet(ctx context.Context, rec *snapshot.Recorder, sum *actionsummary.Summary) error {
	if rec == nil {
		return nil
	}
	return rec.Record(ctx, sum)
}

func printTable(doc *engine.Document, tableID string) {
	tbl := doc.Table(tableID)
	if tbl == nil {
		fmt.Printf("(no such table: %s)\n", tableID)
		return
	}
	colIDs := tbl.ColumnIDs()
	for _, row := range tbl.RowIDs() {
		values := map[string]interface{}{}
		for _, colID := range colIDs {
			values[colID] = tbl.Column(colID).Get(row)
		}
		printJSON(values)
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Println("(failed to encode:", err, ")")
	}
}
