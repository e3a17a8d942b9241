package domain

import "time"

type MessageID uint64

// ChatMessage is a persisted chat line. ID and CreatedAt are assigned by the
// store, never by the client.
type ChatMessage struct {
	ID         MessageID `json:"id"`
	Room       RoomName  `json:"room"`
	Content    string    `json:"content"`
	AuthorID   UserID    `json:"author_id"`
	AuthorName string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
}
