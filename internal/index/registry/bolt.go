package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const bucketDatabases = "databases"

type Bolt struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*Bolt, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("dbPath is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketDatabases))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Bolt) Put(rec Record) error {
	if b == nil || b.db == nil {
		return fmt.Errorf("registry is not open")
	}
	rec, err := validate(rec)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketDatabases)).Put([]byte(rec.Root), raw)
	})
}

func (b *Bolt) Get(root string) (Record, error) {
	if b == nil || b.db == nil {
		return Record{}, fmt.Errorf("registry is not open")
	}
	var rec Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(bucketDatabases)).Get([]byte(strings.TrimSpace(root)))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns records ordered by root; bbolt iterates keys in byte order.
func (b *Bolt) List() ([]Record, error) {
	if b == nil || b.db == nil {
		return nil, fmt.Errorf("registry is not open")
	}
	var out []Record
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketDatabases)).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

func (b *Bolt) Delete(root string) error {
	if b == nil || b.db == nil {
		return fmt.Errorf("registry is not open")
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketDatabases)).Delete([]byte(strings.TrimSpace(root)))
	})
}
