package usecase

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"sleuth/internal/domain"
)

// Conversation is an ordered, append-only message log owned by a single
// engine run. Sub-conversations (validator rounds) get their own instance;
// transcripts are never shared between engines.
type Conversation struct {
	mu        sync.RWMutex
	ID        string           `json:"id"` // ULID
	Query     string           `json:"query"`
	Msgs      []domain.Message `json:"messages"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewConversation creates an empty conversation for the given research query.
func NewConversation(query string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        generateULID(now),
		Query:     query,
		Msgs:      make([]domain.Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func generateULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// AddMessage appends a message and updates the timestamp (thread-safe).
// Messages are never modified or removed once appended.
func (c *Conversation) AddMessage(msg domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	c.Msgs = append(c.Msgs, msg)
	c.UpdatedAt = time.Now()
}

// Messages returns a copy of the message history (thread-safe).
func (c *Conversation) Messages() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make([]domain.Message, len(c.Msgs))
	copy(cp, c.Msgs)
	return cp
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.Msgs)
}
