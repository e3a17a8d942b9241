package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dkeye/Chat/internal/domain"
)

var (
	messagePrefix = []byte("msg:")
	sequenceKey   = []byte("seq:msg")
)

// OpenBadger opens an on-disk badger database, or an in-memory one when
// path is empty.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return db, nil
}

type badgerRecord struct {
	ID         uint64 `json:"id"`
	Room       string `json:"room"`
	Content    string `json:"content"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	At         int64  `json:"at"`
}

func (r badgerRecord) toDomain() domain.ChatMessage {
	return domain.ChatMessage{
		ID:         domain.MessageID(r.ID),
		Room:       domain.RoomName(r.Room),
		Content:    r.Content,
		AuthorID:   domain.UserID(r.AuthorID),
		AuthorName: r.AuthorName,
		CreatedAt:  time.Unix(0, r.At).UTC(),
	}
}

// BadgerStore keeps messages in badger under "msg:{id}" with the id
// zero-padded to 20 digits, so a prefix scan yields creation order.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

var _ MessageStore = (*BadgerStore)(nil)

func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	seq, err := db.GetSequence(sequenceKey, 128)
	if err != nil {
		return nil, fmt.Errorf("failed to lease message sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func messageKey(id uint64) []byte {
	return []byte(fmt.Sprintf("msg:%020d", id))
}

func (s *BadgerStore) Append(ctx context.Context, room domain.RoomName, content string, author *domain.User) (domain.ChatMessage, error) {
	if err := validateAppend(room, content, author); err != nil {
		return domain.ChatMessage{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.ChatMessage{}, domain.NewPersistenceError("append", err)
	}
	next, err := s.seq.Next()
	if err != nil {
		return domain.ChatMessage{}, domain.NewPersistenceError("append", err)
	}
	// sequences start at zero, ids start at one
	rec := badgerRecord{
		ID:         next + 1,
		Room:       string(room),
		Content:    content,
		AuthorID:   string(author.ID),
		AuthorName: author.Username,
		At:         time.Now().UTC().UnixNano(),
	}
	if err := s.put(rec); err != nil {
		return domain.ChatMessage{}, domain.NewPersistenceError("append", err)
	}
	return rec.toDomain(), nil
}

func (s *BadgerStore) put(rec badgerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(rec.ID), data)
	})
}

func (s *BadgerStore) List(ctx context.Context, room domain.RoomName) ([]domain.ChatMessage, error) {
	out := make([]domain.ChatMessage, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(messagePrefix); it.ValidForPrefix(messagePrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec badgerRecord
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &rec)
			}); err != nil {
				return err
			}
			if room != "" && rec.Room != string(room) {
				continue
			}
			out = append(out, rec.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewPersistenceError("list", err)
	}
	return out, nil
}

func (s *BadgerStore) get(txn *badger.Txn, id domain.MessageID) (badgerRecord, error) {
	var rec badgerRecord
	item, err := txn.Get(messageKey(uint64(id)))
	if err != nil {
		return rec, err
	}
	err = item.Value(func(v []byte) error {
		return json.Unmarshal(v, &rec)
	})
	return rec, err
}

func (s *BadgerStore) Get(_ context.Context, id domain.MessageID) (domain.ChatMessage, error) {
	var rec badgerRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = s.get(txn, id)
		return err
	})
	if err != nil {
		return domain.ChatMessage{}, mapBadgerErr("get", err)
	}
	return rec.toDomain(), nil
}

func (s *BadgerStore) Update(_ context.Context, id domain.MessageID, content string) (domain.ChatMessage, error) {
	if err := validateContent(content); err != nil {
		return domain.ChatMessage{}, err
	}
	var rec badgerRecord
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		if rec, err = s.get(txn, id); err != nil {
			return err
		}
		rec.Content = content
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(messageKey(rec.ID), data)
	})
	if err != nil {
		return domain.ChatMessage{}, mapBadgerErr("update", err)
	}
	return rec.toDomain(), nil
}

func (s *BadgerStore) Delete(_ context.Context, id domain.MessageID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(messageKey(uint64(id))); err != nil {
			return err
		}
		return txn.Delete(messageKey(uint64(id)))
	})
	return mapBadgerErr("delete", err)
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		return err
	}
	return s.db.Close()
}

func mapBadgerErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return domain.ErrNotFound
	default:
		return domain.NewPersistenceError(op, err)
	}
}
