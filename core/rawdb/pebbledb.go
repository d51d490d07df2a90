package rawdb

import (
	"bytes"

	"github.com/cockroachdb/pebble"
)

// PebbleDB is a persistent key-value database backed by a pebble LSM-tree
// store. It implements the Database interface and is the on-disk backend
// used outside of tests, where MemoryDB suffices.
type PebbleDB struct {
	db *pebble.DB
}

// NewPebbleDB opens (or creates) a pebble database at the given directory.
func NewPebbleDB(dir string) (*PebbleDB, error) {
	opts := &pebble.Options{}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	return &PebbleDB{db: db}, nil
}

func (p *PebbleDB) Has(key []byte) (bool, error) {
	val, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	_ = val
	return true, nil
}

func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	cp := make([]byte, len(val))
	copy(cp, val)
	return cp, nil
}

func (p *PebbleDB) Put(key, value []byte) error {
	return p.db.Set(key, value, pebble.NoSync)
}

func (p *PebbleDB) Delete(key []byte) error {
	return p.db.Delete(key, pebble.NoSync)
}

func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// NewBatch creates a new write batch backed by pebble's own batch type.
func (p *PebbleDB) NewBatch() Batch {
	return &pebbleBatch{db: p.db, batch: p.db.NewBatch()}
}

// NewIterator returns an iterator over all keys with the given prefix.
func (p *PebbleDB) NewIterator(prefix []byte) Iterator {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return &pebbleIterator{err: err}
	}
	return &pebbleIterator{iter: iter, started: false}
}

// upperBound computes the exclusive upper bound key for a prefix scan by
// incrementing the last non-0xff byte. A nil prefix has no upper bound.
func upperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	ub := make([]byte, len(prefix))
	copy(ub, prefix)
	for i := len(ub) - 1; i >= 0; i-- {
		if ub[i] < 0xff {
			ub[i]++
			return ub[:i+1]
		}
	}
	return nil // prefix is all 0xff, unbounded above
}

type pebbleBatch struct {
	db    *pebble.DB
	batch *pebble.Batch
}

func (b *pebbleBatch) Put(key, value []byte) error {
	return b.batch.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) error {
	return b.batch.Delete(key, nil)
}

func (b *pebbleBatch) ValueSize() int {
	return len(b.batch.Repr())
}

func (b *pebbleBatch) Write() error {
	return b.db.Apply(b.batch, pebble.NoSync)
}

func (b *pebbleBatch) Reset() {
	b.batch.Reset()
}

type pebbleIterator struct {
	iter    *pebble.Iterator
	started bool
	err     error
}

func (it *pebbleIterator) Next() bool {
	if it.iter == nil {
		return false
	}
	if !it.started {
		it.started = true
		return it.iter.First()
	}
	return it.iter.Next()
}

func (it *pebbleIterator) Key() []byte {
	if it.iter == nil {
		return nil
	}
	return bytes.Clone(it.iter.Key())
}

func (it *pebbleIterator) Value() []byte {
	if it.iter == nil {
		return nil
	}
	return bytes.Clone(it.iter.Value())
}

func (it *pebbleIterator) Release() {
	if it.iter != nil {
		it.iter.Close()
	}
}
