// Package storage persists the coordinator's aggregates in a prefixed
// key-value store. It owns the uniqueness guarantees the ledger does not
// cover locally (one identity per user reference, one commitment, one
// nullifier, one transaction hash) and a small queue of pending
// reconciliation markers for votes the ledger accepted but local persistence
// could not record. The following prefixes are used:
//   - 'v/'  for voter identities
//   - 'vu/' for the user-reference -> voter index
//   - 'vc/' for the commitment -> voter index
//   - 'e/'  for elections
//   - 'r/'  for vote records (keyed by ledger tx hash)
//   - 'n/'  for the nullifier -> tx hash index
//   - 'a/'  for audit entries (time-ordered keys)
//   - 'q/'  for pending reconciliation markers (queued)
//   - 'qr/' for reconciliation reservations
package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	// Prefixes for the keys in the database.
	voterPrefix        = []byte("v/")
	voterUserRefPrefix = []byte("vu/")
	commitmentPrefix   = []byte("vc/")
	electionPrefix     = []byte("e/")
	voteRecordPrefix   = []byte("r/")
	nullifierPrefix    = []byte("n/")
	auditPrefix        = []byte("a/")
	reconcilePrefix    = []byte("q/")
	reconcileResPrefix = []byte("qr/")
)

// ErrNotFound is returned when the requested artifact does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoMoreElements is returned by queue operations when the queue is empty.
var ErrNoMoreElements = errors.New("no more elements")

// ErrConstraint is returned when a write would violate a uniqueness
// constraint (commitment, nullifier, tx hash or user reference).
var ErrConstraint = errors.New("uniqueness constraint violation")

// Storage wraps the prefixed key-value store. All aggregate mutations take
// the global lock so that read-modify-write sequences (counters, list
// appends, state flips) commit atomically with respect to each other. The
// lock is never held across ledger or prover calls.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance.
func New(database db.Database) *Storage {
	return &Storage{db: database}
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		panic(err)
	}
}

// Artifact encoding/decoding. Deterministic CBOR so that identical artifacts
// always produce identical bytes.
func encodeArtifact(a any) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

func decodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

// setArtifact encodes and stores an artifact under the given prefix and key.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	val, err := encodeArtifact(artifact)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, val); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// getArtifact reads and decodes an artifact. Returns ErrNotFound if the key
// does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	data, err := rd.Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get artifact: %w", err)
	}
	return decodeArtifact(data, out)
}

// deleteArtifact removes an artifact. Missing keys are not an error.
func (s *Storage) deleteArtifact(prefix, key []byte) error {
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Delete(key); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

// hasKey reports whether a key exists under a prefix.
func (s *Storage) hasKey(prefix, key []byte) bool {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	_, err := rd.Get(key)
	return err == nil
}

// listKeys returns all keys stored under a prefix.
func (s *Storage) listKeys(prefix []byte) ([][]byte, error) {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	var keys [][]byte
	if err := rd.Iterate(nil, func(k, _ []byte) bool {
		keyCopy := make([]byte, len(k))
		copy(keyCopy, k)
		keys = append(keys, keyCopy)
		return true
	}); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}
