// Package memory is an in-memory implementation of storage.Storage used
// by tests and the USE_MOCK_DB mode. It honors the same semantics as the
// relational store: conditional step advancement, FIFO claims with
// at-most-one consumer per queue entry, and a single active match per
// user.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"blindchat/internal/models"
	"blindchat/internal/storage"
)

type queueRec struct {
	at  time.Time
	seq uint64
}

type participant struct {
	userID   int64
	revealed bool
}

type matchRec struct {
	id     uint64
	status models.MatchStatus
	sides  [2]participant
}

// Store is a mutex-guarded in-memory Storage.
type Store struct {
	mu           sync.Mutex
	profiles     map[int64]models.Profile
	queue        map[int64]queueRec
	matches      map[uint64]*matchRec
	activeByUser map[int64]uint64
	nextMatchID  uint64
	nextSeq      uint64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		profiles:     make(map[int64]models.Profile),
		queue:        make(map[int64]queueRec),
		matches:      make(map[uint64]*matchRec),
		activeByUser: make(map[int64]uint64),
	}
}

func (s *Store) Initialize(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ProfileExists(ctx context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.profiles[userID]
	return ok, nil
}

func (s *Store) CreateProfile(ctx context.Context, userID int64, username, firstName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; ok {
		return storage.ErrAlreadyExists
	}
	s.profiles[userID] = models.Profile{
		TelegramID:       userID,
		Username:         username,
		FirstName:        firstName,
		RegistrationStep: models.StepAge,
		Active:           true,
		CreatedAt:        time.Now().UTC(),
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (s *Store) SetAge(ctx context.Context, userID int64, age int) error {
	return s.advance(userID, models.StepAge, func(p *models.Profile) { p.Age = age })
}

func (s *Store) SetGender(ctx context.Context, userID int64, gender models.Gender) error {
	return s.advance(userID, models.StepGender, func(p *models.Profile) { p.Gender = gender })
}

func (s *Store) SetLookingFor(ctx context.Context, userID int64, pref models.Preference) error {
	return s.advance(userID, models.StepLookingFor, func(p *models.Profile) { p.LookingFor = pref })
}

func (s *Store) SetBio(ctx context.Context, userID int64, bio string) error {
	return s.advance(userID, models.StepBio, func(p *models.Profile) { p.Bio = bio })
}

// advance mirrors the relational store's guarded update: the write only
// happens when the profile sits at the expected step.
func (s *Store) advance(userID int64, from models.RegistrationStep, set func(*models.Profile)) error {
	next, ok := from.Next()
	if !ok {
		return storage.ErrStaleStep
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.profiles[userID]
	if !exists || p.RegistrationStep != from {
		return storage.ErrStaleStep
	}
	set(&p)
	p.RegistrationStep = next
	s.profiles[userID] = p
	return nil
}

func (s *Store) Enqueue(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	s.queue[userID] = queueRec{at: time.Now().UTC(), seq: s.nextSeq}
	return nil
}

func (s *Store) ClaimCompatiblePartner(ctx context.Context, userID int64) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	me, ok := s.profiles[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	type cand struct {
		id  int64
		rec queueRec
	}
	var cands []cand
	for id, rec := range s.queue {
		if id == userID {
			continue
		}
		p, ok := s.profiles[id]
		if !ok || !models.Compatible(&me, &p) {
			continue
		}
		cands = append(cands, cand{id: id, rec: rec})
	}
	if len(cands) == 0 {
		return nil, storage.ErrNotFound
	}

	// FIFO: earliest enqueue wins, insertion order breaks ties.
	sort.Slice(cands, func(i, j int) bool {
		if !cands[i].rec.at.Equal(cands[j].rec.at) {
			return cands[i].rec.at.Before(cands[j].rec.at)
		}
		return cands[i].rec.seq < cands[j].rec.seq
	})

	winner := s.profiles[cands[0].id]
	delete(s.queue, cands[0].id)
	delete(s.queue, userID)
	return &winner, nil
}

func (s *Store) OpenMatch(ctx context.Context, userA, userB int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.activeByUser[userA]; busy {
		return 0, storage.ErrActiveMatchExists
	}
	if _, busy := s.activeByUser[userB]; busy {
		return 0, storage.ErrActiveMatchExists
	}

	s.nextMatchID++
	m := &matchRec{
		id:     s.nextMatchID,
		status: models.MatchActive,
		sides:  [2]participant{{userID: userA}, {userID: userB}},
	}
	s.matches[m.id] = m
	s.activeByUser[userA] = m.id
	s.activeByUser[userB] = m.id
	return m.id, nil
}

func (s *Store) ActiveMatch(ctx context.Context, userID int64) (*storage.MatchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(userID)
}

func (s *Store) EndMatch(ctx context.Context, userID int64) (*storage.MatchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.stateLocked(userID)
	if err != nil {
		return nil, err
	}
	m := s.matches[st.MatchID]
	m.status = models.MatchEnded
	delete(s.activeByUser, m.sides[0].userID)
	delete(s.activeByUser, m.sides[1].userID)
	return st, nil
}

func (s *Store) MarkRevealed(ctx context.Context, userID int64) (*storage.MatchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.stateLocked(userID)
	if err != nil {
		return nil, err
	}
	m := s.matches[st.MatchID]
	for i := range m.sides {
		if m.sides[i].userID == userID {
			st.AlreadyRevealed = m.sides[i].revealed
			m.sides[i].revealed = true
		}
	}
	st.YouRevealed = true
	return st, nil
}

func (s *Store) stateLocked(userID int64) (*storage.MatchState, error) {
	matchID, ok := s.activeByUser[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	m := s.matches[matchID]
	st := &storage.MatchState{MatchID: matchID}
	for _, side := range m.sides {
		if side.userID == userID {
			st.YouRevealed = side.revealed
		} else {
			st.PartnerID = side.userID
			st.PartnerRevealed = side.revealed
		}
	}
	return st, nil
}
