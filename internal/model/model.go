package model

import (
	"time"

	"github.com/chirino/history-service/internal/ident"
)

// Message is a single entry in a discussion's ledger. Messages are immutable
// once created; there is no edit or delete path.
type Message struct {
	ID           ident.ID  `json:"id"`
	Text         string    `json:"text"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	DiscussionID ident.ID  `json:"discussion_id"`
}

// LastMessage is the denormalized snapshot of a discussion's most recent
// message, carried on the Discussion record so directory listings never touch
// the message collection.
type LastMessage struct {
	MessageID ident.ID  `json:"message_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Discussion is the directory record for one conversation: its participant
// set plus a recency summary. It is created implicitly by the first message
// batch; Users only ever grows.
//
// Invariant: when LastMessage is set, LastMessage.CreatedAt == UpdatedAt.
// Under racing writers the snapshot is last-writer-wins and may transiently
// lag the ledger's true newest message; it self-heals on the next write.
type Discussion struct {
	ID          ident.ID     `json:"id"`
	Users       []string     `json:"users"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
}
