package location

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketCounters = []byte("counters")

// Bolt stores counters in a single bbolt file.
type Bolt struct {
	name string
	db   *bolt.DB
}

// OpenBolt opens (creating if needed) the bbolt file at path. When noSync
// is set, commits skip fsync.
func OpenBolt(name, path string, noSync bool) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second, NoSync: noSync})
	if err != nil {
		return nil, fmt.Errorf("location %s: open bolt: %w", name, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCounters)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("location %s: create bucket: %w", name, err)
	}
	return &Bolt{name: name, db: db}, nil
}

func (b *Bolt) Name() string { return b.name }

func (b *Bolt) ReadCounter(ctx context.Context, scope, sequence string) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	var raw []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCounters).Get(counterKey(scope, sequence))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return State{}, err
	}
	if raw == nil {
		return State{}, nil
	}
	return decodeState(raw)
}

func (b *Bolt) WriteCounter(ctx context.Context, scope, sequence string, st State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCounters).Put(counterKey(scope, sequence), encodeState(st))
	})
}

func (b *Bolt) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketCounters) == nil {
			return fmt.Errorf("location %s: counters bucket missing", b.name)
		}
		return nil
	})
}

func (b *Bolt) Close() error { return b.db.Close() }
