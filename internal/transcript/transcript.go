package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"chatwidget/internal/storage"

	"github.com/rs/zerolog"
)

// HistoryKey is the session storage key holding the serialized transcript.
const HistoryKey = "chatHistory"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleError:
		return true
	default:
		return false
	}
}

type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Store reads and appends the session transcript. Appends are serialized so
// two concurrent read-modify-write cycles cannot drop each other's message.
type Store struct {
	storage storage.Storage
	log     zerolog.Logger
	mu      sync.Mutex
}

func NewStore(s storage.Storage, log zerolog.Logger) *Store {
	return &Store{storage: s, log: log}
}

// Load never fails: missing, unreadable or malformed history reads as empty.
func (s *Store) Load(ctx context.Context) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) []Message {
	raw, ok, err := s.storage.GetItem(ctx, HistoryKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("read transcript")
		return []Message{}
	}
	if !ok || raw == "" {
		return []Message{}
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		s.log.Debug().Err(err).Msg("discarding unparsable transcript")
		return []Message{}
	}
	for _, m := range msgs {
		if !m.Role.Valid() {
			s.log.Debug().Str("role", string(m.Role)).Msg("discarding transcript with unknown role")
			return []Message{}
		}
	}
	if msgs == nil {
		return []Message{}
	}
	return msgs
}

func (s *Store) Append(ctx context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.load(ctx), m)
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := s.storage.SetItem(ctx, HistoryKey, string(data)); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
