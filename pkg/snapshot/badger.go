package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/wire"
)

const badgerLogPrefix = "log:"

func badgerLogKey(seq int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", badgerLogPrefix, seq))
}

// BadgerSink mirrors the action log into an embedded Badger KV store, the
// teacher's alternate resource.DataSource backend, reused here as a second
// selectable export sink alongside SQLiteSink.
type BadgerSink struct {
	db *badger.DB
}

// OpenBadgerSink opens a Badger database at dir. dir == "" opens an
// in-memory instance, for a throwaway export.
func OpenBadgerSink(dir string) (*BadgerSink, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open badger: %w", err)
	}
	return &BadgerSink{db: db}, nil
}

// Append wire-encodes act and stores it under a zero-padded sequence key so
// an iterator walks the log in apply order.
func (s *BadgerSink) Append(ctx context.Context, seq int64, act action.Action) error {
	rec, err := wire.EncodeAction(act)
	if err != nil {
		return fmt.Errorf("snapshot: encode action: %w", err)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("snapshot: marshal action: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerLogKey(seq), payload)
	})
}

// Fetch returns every logged action's wire-encoded record, in key (hence
// seq) order.
func (s *BadgerSink) Fetch(ctx context.Context) ([]wire.Record, error) {
	var out []wire.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerLogPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				var rec wire.Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				out = append(out, rec)
				return nil
			}); err != nil {
				return fmt.Errorf("snapshot: decode action_log entry: %w", err)
			}
		}
		return nil
	})
	return out, err
}

func (s *BadgerSink) Close() error {
	return s.db.Close()
}
