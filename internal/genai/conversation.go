package genai

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role marks who wrote a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Greeting opens every coach conversation.
const Greeting = "Hallo! Ich bin Ihr AI-Gesundheitscoach. Wie kann ich Ihnen heute helfen?"

// DefaultHistory bounds how many messages a conversation keeps.
const DefaultHistory = 40

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("genai: coach session not found")

// Message is one chat turn.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Conversation is a coach chat. The greeting is always kept as the first
// message; older turns are dropped once the history is full.
type Conversation struct {
	ID uuid.UUID

	mu       sync.Mutex
	messages []Message
	max      int
	now      func() time.Time
	lastUsed time.Time
}

// NewConversation starts a chat holding only the greeting.
func NewConversation(maxHistory int) *Conversation {
	if maxHistory < 2 {
		maxHistory = DefaultHistory
	}
	return &Conversation{
		ID:       uuid.New(),
		messages: []Message{{Role: RoleModel, Text: Greeting}},
		max:      maxHistory,
		now:      time.Now,
		lastUsed: time.Now(),
	}
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

func (c *Conversation) append(m Message) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
	if over := len(c.messages) - c.max; over > 0 {
		c.messages = append(c.messages[:1], c.messages[1+over:]...)
	}
	c.lastUsed = c.now()
	return append([]Message(nil), c.messages...)
}

func (c *Conversation) touch(at time.Time) {
	c.mu.Lock()
	c.lastUsed = at
	c.mu.Unlock()
}

func (c *Conversation) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Sessions keeps coach conversations for the HTTP API.
type Sessions struct {
	ttl        time.Duration
	maxHistory int
	now        func() time.Time

	mu    sync.Mutex
	items map[uuid.UUID]*Conversation
}

// NewSessions returns a registry that forgets conversations idle for ttl.
func NewSessions(ttl time.Duration, maxHistory int) *Sessions {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Sessions{
		ttl:        ttl,
		maxHistory: maxHistory,
		now:        time.Now,
		items:      make(map[uuid.UUID]*Conversation),
	}
}

// Start creates a new conversation.
func (s *Sessions) Start() *Conversation {
	conv := NewConversation(s.maxHistory)
	conv.now = s.now
	conv.lastUsed = s.now()
	s.mu.Lock()
	s.evictLocked()
	s.items[conv.ID] = conv
	s.mu.Unlock()
	return conv
}

// Get looks up id, parsing it from its string form.
func (s *Sessions) Get(id string) (*Conversation, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	conv, ok := s.items[parsed]
	if !ok {
		return nil, ErrSessionNotFound
	}
	conv.touch(s.now())
	return conv, nil
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Sessions) evictLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, conv := range s.items {
		if conv.idleSince().Before(cutoff) {
			delete(s.items, id)
		}
	}
}
