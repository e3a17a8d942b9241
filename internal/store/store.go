//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks
package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dkeye/Chat/internal/config"
	"github.com/dkeye/Chat/internal/domain"
)

// MaxContentLen is counted in runes, like the gateway's frame validation.
const MaxContentLen = 4096

// MessageStore persists chat messages. Implementations are safe for
// concurrent use, and a successful Append is visible to every later List.
type MessageStore interface {
	// Append validates and stores a message, assigning its ID and
	// CreatedAt. It fails with *domain.ValidationError or
	// *domain.PersistenceError.
	Append(ctx context.Context, room domain.RoomName, content string, author *domain.User) (domain.ChatMessage, error)
	// List returns messages of room in ascending creation order, or of
	// every room when room is empty.
	List(ctx context.Context, room domain.RoomName) ([]domain.ChatMessage, error)
	Get(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error)
	Update(ctx context.Context, id domain.MessageID, content string) (domain.ChatMessage, error)
	Delete(ctx context.Context, id domain.MessageID) error
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(cfg config.StoreConfig) (MessageStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		db, err := OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db), nil
	case "badger":
		db, err := OpenBadger(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewBadgerStore(db)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return domain.NewValidationError("content", "must not be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return domain.NewValidationError("content", "too long")
	}
	return nil
}

func validateAppend(room domain.RoomName, content string, author *domain.User) error {
	if author == nil || author.ID == "" {
		return domain.NewValidationError("author", "must reference an authenticated user")
	}
	if room == "" {
		return domain.NewValidationError("room", "must not be empty")
	}
	return validateContent(content)
}
