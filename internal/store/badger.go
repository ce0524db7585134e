package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

const (
	badgerConflictRetries = 3

	// payloadChunkSize stays under the 1 MiB value cap of in-memory badger
	// once the chunk is gob encoded.
	payloadChunkSize = 512 << 10

	// diskValueThreshold sends every chunk to the value log, so a transaction
	// only carries pointers.
	diskValueThreshold = 64 << 10

	// Badger caps a transaction at 15% of the memtable, which in memory must
	// still hold a payload at the ingest size limit.
	inMemoryTableSize = 192 << 20
)

// payloadEntry keeps the chunk count under the same key as its Record but in
// its own badgerhold type, so listing never decodes payloads.
type payloadEntry struct {
	ID     string
	Chunks int
}

type payloadChunk struct {
	ID   string
	Seq  int
	Data []byte
}

func chunkKey(id string, seq int) string {
	return fmt.Sprintf("%s/%d", id, seq)
}

type badgerStore struct {
	db  *badgerhold.Store
	now func() time.Time
}

// BadgerOptions configures the embedded store. InMemory ignores Path.
type BadgerOptions struct {
	Path     string
	InMemory bool
}

func OpenBadger(opts BadgerOptions) (Store, error) {
	options := badgerhold.DefaultOptions
	options.Logger = nil
	if opts.InMemory {
		options.InMemory = true
		options.MemTableSize = inMemoryTableSize
	} else {
		if err := os.MkdirAll(opts.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		options.Dir = opts.Path
		options.ValueDir = opts.Path
		options.ValueThreshold = diskValueThreshold
	}

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &badgerStore{db: db, now: time.Now}, nil
}

func (s *badgerStore) Put(ctx context.Context, file File) (Record, error) {
	rec, err := newRecord(file, s.now())
	if err != nil {
		return Record{}, err
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	err = s.update(func(tx *badger.Txn) error {
		if err := s.db.TxInsert(tx, rec.ID, &rec); err != nil {
			return err
		}
		chunks := 0
		for off := 0; off < len(file.Data); off += payloadChunkSize {
			end := min(off+payloadChunkSize, len(file.Data))
			chunk := &payloadChunk{ID: rec.ID, Seq: chunks, Data: file.Data[off:end]}
			if err := s.db.TxInsert(tx, chunkKey(rec.ID, chunks), chunk); err != nil {
				return err
			}
			chunks++
		}
		return s.db.TxInsert(tx, rec.ID, &payloadEntry{ID: rec.ID, Chunks: chunks})
	})
	if err != nil {
		return Record{}, fmt.Errorf("insert document: %w", err)
	}
	return rec, nil
}

func (s *badgerStore) ListAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []Record
	if err := s.db.Find(&recs, nil); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return recs, nil
}

func (s *badgerStore) GetPayload(ctx context.Context, id string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var data []byte
	found := false
	err := s.db.Badger().View(func(tx *badger.Txn) error {
		var entry payloadEntry
		if err := s.db.TxGet(tx, id, &entry); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return nil
			}
			return err
		}
		for seq := 0; seq < entry.Chunks; seq++ {
			var chunk payloadChunk
			if err := s.db.TxGet(tx, chunkKey(id, seq), &chunk); err != nil {
				return fmt.Errorf("chunk %d: %w", seq, err)
			}
			data = append(data, chunk.Data...)
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get payload: %w", err)
	}
	return data, found, nil
}

func (s *badgerStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.update(func(tx *badger.Txn) error {
		if err := s.db.TxDelete(tx, id, &Record{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return err
		}
		var entry payloadEntry
		if err := s.db.TxGet(tx, id, &entry); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return nil
			}
			return err
		}
		for seq := 0; seq < entry.Chunks; seq++ {
			if err := s.db.TxDelete(tx, chunkKey(id, seq), &payloadChunk{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
				return err
			}
		}
		return s.db.TxDelete(tx, id, &payloadEntry{})
	})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *badgerStore) UpdateStatus(ctx context.Context, id string, status Status, remoteURL string) error {
	if !status.Valid() {
		return ErrBadStatus
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.update(func(tx *badger.Txn) error {
		var rec Record
		if err := s.db.TxGet(tx, id, &rec); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return nil
			}
			return err
		}
		rec.Status = status
		if remoteURL != "" {
			rec.RemoteURL = remoteURL
		}
		return s.db.TxUpdate(tx, id, &rec)
	})
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction, retrying when badger reports a
// conflict with a concurrent writer.
func (s *badgerStore) update(fn func(tx *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < badgerConflictRetries; attempt++ {
		err = s.db.Badger().Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}
