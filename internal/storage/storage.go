package storage

import (
	"context"
	"errors"

	"blindchat/internal/models"
)

// Sentinel errors returned by Storage implementations. Callers classify
// failures with errors.Is; in particular ErrUnavailable must stay
// distinguishable from ErrNotFound so that a store outage is never
// reported to the user as "you're not in a chat".
var (
	// ErrNotFound means the query ran and the record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the store could not answer (timeout,
	// connection failure, unexpected engine error).
	ErrUnavailable = errors.New("storage unavailable")
	// ErrAlreadyExists is returned by CreateProfile on a duplicate key.
	ErrAlreadyExists = errors.New("already exists")
	// ErrActiveMatchExists is returned by OpenMatch when either user
	// already participates in an active match.
	ErrActiveMatchExists = errors.New("user already has an active match")
	// ErrStaleStep is returned by the registration setters when the
	// profile is not at the step the setter advances from.
	ErrStaleStep = errors.New("registration step already advanced")
)

// MatchState is one user's view of their active (or just-ended) match.
type MatchState struct {
	MatchID         uint64
	PartnerID       int64
	YouRevealed     bool
	PartnerRevealed bool
	// AlreadyRevealed is set by MarkRevealed when the caller's flag was
	// already true, so the caller can avoid disclosing identities twice.
	AlreadyRevealed bool
}

// BothRevealed reports whether both sides consented to the reveal.
func (m *MatchState) BothRevealed() bool {
	return m.YouRevealed && m.PartnerRevealed
}

// Storage is the durable state behind the matchmaking workflow. It is the
// only ordering authority between concurrent users: every mutation that
// could race (queue claims, match opening, step advancement) is a
// conditional write inside the implementation, not a check-then-act in
// the caller.
type Storage interface {
	// Profile lifecycle.
	ProfileExists(ctx context.Context, userID int64) (bool, error)
	CreateProfile(ctx context.Context, userID int64, username, firstName string) error
	GetProfile(ctx context.Context, userID int64) (*models.Profile, error)

	// Registration setters. Each one writes its field and advances the
	// registration step in a single conditional update guarded by the
	// current step; ErrStaleStep means the guard did not hold.
	SetAge(ctx context.Context, userID int64, age int) error
	SetGender(ctx context.Context, userID int64, gender models.Gender) error
	SetLookingFor(ctx context.Context, userID int64, pref models.Preference) error
	SetBio(ctx context.Context, userID int64, bio string) error

	// Queue. Enqueue upserts (refreshing the timestamp on re-enqueue).
	// ClaimCompatiblePartner picks the earliest-enqueued compatible
	// candidate and removes both queue entries; the candidate removal is
	// a conditional delete, so each queue entry has at most one consumer.
	// ErrNotFound means nobody compatible is waiting.
	Enqueue(ctx context.Context, userID int64) error
	ClaimCompatiblePartner(ctx context.Context, userID int64) (*models.Profile, error)

	// Matches.
	OpenMatch(ctx context.Context, userA, userB int64) (uint64, error)
	ActiveMatch(ctx context.Context, userID int64) (*MatchState, error)
	EndMatch(ctx context.Context, userID int64) (*MatchState, error)
	MarkRevealed(ctx context.Context, userID int64) (*MatchState, error)

	// Lifecycle.
	Initialize(ctx context.Context) error
	Close() error
}
