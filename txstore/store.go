// Package txstore journals the transactions submitted by the sequencer so
// that writes which may still confirm stay visible across restarts.
package txstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	dbm "github.com/tendermint/tm-db"

	"github.com/agrimarket/agridash/types"
)

// ErrNotFound is returned by Get for an unknown hash.
var ErrNotFound = errors.New("transaction not found")

var (
	recordPrefix = []byte("tx/")
	indexPrefix  = []byte("idx/")
)

// Store is a tm-db backed transaction journal.
//
// Safe for concurrent use by multiple goroutines.
type Store struct {
	mtx sync.Mutex
	db  dbm.DB
}

func New(db dbm.DB) *Store {
	return &Store{db: db}
}

// Save inserts rec or replaces the record with the same hash.
func (s *Store) Save(rec types.TxRecord) error {
	bz, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	b := s.db.NewBatch()
	defer b.Close()

	// keep the index position of the first submission
	if prev, err := s.get(rec.Hash); err == nil {
		rec.SubmittedAt = prev.SubmittedAt
		if bz, err = json.Marshal(rec); err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
	}

	if err := b.Set(recordKey(rec.Hash), bz); err != nil {
		return err
	}
	if err := b.Set(indexKey(rec), rec.Hash.Bytes()); err != nil {
		return err
	}
	return b.WriteSync()
}

// Get returns the record of hash.
func (s *Store) Get(hash common.Hash) (types.TxRecord, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.get(hash)
}

func (s *Store) get(hash common.Hash) (types.TxRecord, error) {
	bz, err := s.db.Get(recordKey(hash))
	if err != nil {
		return types.TxRecord{}, err
	}
	if len(bz) == 0 {
		return types.TxRecord{}, ErrNotFound
	}
	var rec types.TxRecord
	if err := json.Unmarshal(bz, &rec); err != nil {
		return types.TxRecord{}, fmt.Errorf("unmarshaling record %s: %w", hash, err)
	}
	return rec, nil
}

// List returns up to limit records, newest first. A limit of zero or less
// returns every record.
func (s *Store) List(limit int) ([]types.TxRecord, error) {
	return s.scan(limit, func(types.TxRecord) bool { return true })
}

// Pending returns the records whose confirmation was never observed, newest
// first.
func (s *Store) Pending() ([]types.TxRecord, error) {
	return s.scan(0, func(rec types.TxRecord) bool { return !rec.Status.Resolved() })
}

func (s *Store) scan(limit int, keep func(types.TxRecord) bool) ([]types.TxRecord, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	it, err := s.db.ReverseIterator(indexPrefix, prefixEnd(indexPrefix))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []types.TxRecord
	for ; it.Valid(); it.Next() {
		rec, err := s.get(common.BytesToHash(it.Value()))
		if err != nil {
			return nil, err
		}
		if !keep(rec) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, it.Error()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(hash common.Hash) []byte {
	return append(append([]byte{}, recordPrefix...), hash.Bytes()...)
}

// indexKey orders records by submission time, then hash.
func indexKey(rec types.TxRecord) []byte {
	key := make([]byte, 0, len(indexPrefix)+8+common.HashLength)
	key = append(key, indexPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(rec.SubmittedAt.UnixNano()))
	return append(key, rec.Hash.Bytes()...)
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	end[len(end)-1]++
	return end
}
