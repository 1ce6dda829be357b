package models

import "time"

// Gender is a user's self-reported gender.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Preference is who a user wants to be matched with.
type Preference string

const (
	PrefMale     Preference = "male"
	PrefFemale   Preference = "female"
	PrefEveryone Preference = "everyone"
)

// Profile represents a registered (or still registering) user.
type Profile struct {
	TelegramID       int64 `gorm:"primaryKey;autoIncrement:false"`
	Username         string `gorm:"size:100"`
	FirstName        string `gorm:"size:100"`
	Age              int
	Gender           Gender     `gorm:"size:20"`
	LookingFor       Preference `gorm:"size:20"`
	Bio              string
	RegistrationStep RegistrationStep `gorm:"size:50;not null"`
	Active           bool             `gorm:"default:true"`
	CreatedAt        time.Time        `gorm:"autoCreateTime"`
}

// Registered reports whether the profile finished onboarding.
func (p *Profile) Registered() bool {
	return p.RegistrationStep == StepComplete
}

// QueueEntry is a user's standing request to be matched, ordered by
// submission time. At most one entry per user; re-enqueue refreshes
// EnqueuedAt instead of inserting a second row.
type QueueEntry struct {
	UserID     int64     `gorm:"primaryKey;autoIncrement:false"`
	EnqueuedAt time.Time `gorm:"not null;index"`
}

// MatchStatus is the lifecycle state of a match. The only transition is
// active -> ended; ended is terminal.
type MatchStatus string

const (
	MatchActive MatchStatus = "active"
	MatchEnded  MatchStatus = "ended"
)

// Match is a pairing between two users. Participants live in
// match_participants rows rather than user1/user2 columns so that
// "at most one active match per user" can be a database constraint
// instead of an application-level check-then-act.
type Match struct {
	ID     uint64      `gorm:"primaryKey;autoIncrement"`
	Status MatchStatus `gorm:"size:20;not null"`
	// Reveals counts first-time reveal consents on this match (0..2).
	// Updating it takes the match row's lock, which is what serializes
	// two concurrent reveals.
	Reveals   int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	EndedAt   *time.Time
}

// MatchParticipant is one user's side of a match. The partial unique
// index allows any number of ended rows per user but only one active
// one, which makes a concurrent double-match attempt fail in the store.
type MatchParticipant struct {
	MatchID  uint64 `gorm:"primaryKey;autoIncrement:false"`
	UserID   int64  `gorm:"primaryKey;autoIncrement:false;uniqueIndex:uniq_active_participant,where:active"`
	Revealed bool   `gorm:"not null;default:false"`
	Active   bool   `gorm:"not null;default:true"`
}

// Compatible reports whether candidate can be paired with requester.
//
// The rule is mutual and exact: the candidate's gender must equal the
// requester's preference AND the candidate's preference must equal the
// requester's gender, compared as literal strings. A candidate whose
// LookingFor is "everyone" never matches a requester whose gender is
// "male" or "female", because "everyone" is a literal value here, not a
// wildcard. That is intentional and must not be "fixed".
func Compatible(requester, candidate *Profile) bool {
	if candidate.TelegramID == requester.TelegramID {
		return false
	}
	return string(candidate.Gender) == string(requester.LookingFor) &&
		string(candidate.LookingFor) == string(requester.Gender)
}
