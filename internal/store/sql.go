package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Chat/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// messageRow is the relational shape of a chat message.
type messageRow struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Room       string    `gorm:"size:64;not null;index"`
	Content    string    `gorm:"type:text;not null"`
	AuthorID   string    `gorm:"size:64;not null;index"`
	AuthorName string    `gorm:"size:64;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (messageRow) TableName() string {
	return "chat_messages"
}

func (r messageRow) toDomain() domain.ChatMessage {
	return domain.ChatMessage{
		ID:         domain.MessageID(r.ID),
		Room:       domain.RoomName(r.Room),
		Content:    r.Content,
		AuthorID:   domain.UserID(r.AuthorID),
		AuthorName: r.AuthorName,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

// OpenSQLite opens (and migrates) a sqlite database. The pool is limited to
// one connection so ":memory:" names a single database and writers never
// hit SQLITE_BUSY.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "chat.db"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&messageRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return db, nil
}

// SQLStore keeps messages in a relational database through gorm.
type SQLStore struct {
	db *gorm.DB
}

var _ MessageStore = (*SQLStore)(nil)

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Append(ctx context.Context, room domain.RoomName, content string, author *domain.User) (domain.ChatMessage, error) {
	if err := validateAppend(room, content, author); err != nil {
		return domain.ChatMessage{}, err
	}
	row := messageRow{
		Room:       string(room),
		Content:    content,
		AuthorID:   string(author.ID),
		AuthorName: author.Username,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.ChatMessage{}, domain.NewPersistenceError("append", err)
	}
	return row.toDomain(), nil
}

func (s *SQLStore) List(ctx context.Context, room domain.RoomName) ([]domain.ChatMessage, error) {
	var rows []messageRow
	q := s.db.WithContext(ctx).Order("id ASC")
	if room != "" {
		q = q.Where("room = ?", string(room))
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, domain.NewPersistenceError("list", err)
	}
	out := make([]domain.ChatMessage, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *SQLStore) Get(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error) {
	var row messageRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", uint64(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ChatMessage{}, domain.ErrNotFound
		}
		return domain.ChatMessage{}, domain.NewPersistenceError("get", err)
	}
	return row.toDomain(), nil
}

func (s *SQLStore) Update(ctx context.Context, id domain.MessageID, content string) (domain.ChatMessage, error) {
	if err := validateContent(content); err != nil {
		return domain.ChatMessage{}, err
	}
	result := s.db.WithContext(ctx).Model(&messageRow{}).Where("id = ?", uint64(id)).Update("content", content)
	if err := result.Error; err != nil {
		return domain.ChatMessage{}, domain.NewPersistenceError("update", err)
	}
	if result.RowsAffected == 0 {
		return domain.ChatMessage{}, domain.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Delete(ctx context.Context, id domain.MessageID) error {
	result := s.db.WithContext(ctx).Delete(&messageRow{}, "id = ?", uint64(id))
	if err := result.Error; err != nil {
		return domain.NewPersistenceError("delete", err)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
