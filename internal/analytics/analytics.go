// Package analytics records matchmaking lifecycle events to an
// append-only store. Events carry counts and identifiers only, never
// message content.
package analytics

import (
	"context"
	"time"
)

// Event types emitted by the bot.
const (
	EventProfileCreated        = "profile_created"
	EventRegistrationCompleted = "registration_completed"
	EventSearch                = "search"
	EventMatchCreated          = "match_created"
	EventMatchEnded            = "match_ended"
	EventRevealRequested       = "reveal_requested"
	EventIdentityRevealed      = "identity_revealed"
	EventMessageRelayed        = "message_relayed"
)

// Event is one matchmaking lifecycle occurrence.
type Event struct {
	Type    string
	UserID  int64
	MatchID uint64
	At      time.Time
}

// Sink receives events. Implementations must be safe for concurrent use;
// a failed Record is reported to the caller but must never be fatal to
// the chat path.
type Sink interface {
	Record(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards all events. Used when analytics are disabled.
type Nop struct{}

func (Nop) Record(ctx context.Context, ev Event) error { return nil }

func (Nop) Close() error { return nil }
