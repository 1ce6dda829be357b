package gormdb

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"blindchat/internal/models"
	"blindchat/internal/storage"
)

// OpenMatch creates an active match between two users. The partial unique
// index on match_participants(user_id) WHERE active enforces "at most one
// active match per user": if either side already has one, the insert
// violates the index and the whole transaction rolls back with
// ErrActiveMatchExists. No pre-check, no race window.
func (s *Store) OpenMatch(ctx context.Context, userA, userB int64) (uint64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var matchID uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		match := models.Match{Status: models.MatchActive}
		if err := tx.Create(&match).Error; err != nil {
			return err
		}
		participants := []models.MatchParticipant{
			{MatchID: match.ID, UserID: userA, Active: true},
			{MatchID: match.ID, UserID: userB, Active: true},
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}
		matchID = match.ID
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, storage.ErrActiveMatchExists
		}
		return 0, mapErr("open match", err)
	}
	return matchID, nil
}

// ActiveMatch returns the caller's view of their active match, or
// ErrNotFound when they are not in one.
func (s *Store) ActiveMatch(ctx context.Context, userID int64) (*storage.MatchState, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var state *storage.MatchState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := activeState(tx, userID)
		if err != nil {
			return err
		}
		state = st
		return nil
	})
	if err != nil {
		return nil, mapErr("active match", err)
	}
	return state, nil
}

// EndMatch marks the caller's active match ended and deactivates both
// participant rows. Returns the final state (so the caller can notify the
// ex-partner) or ErrNotFound when there was nothing to end.
func (s *Store) EndMatch(ctx context.Context, userID int64) (*storage.MatchState, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var state *storage.MatchState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := activeState(tx, userID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Match{}).
			Where("id = ? AND status = ?", st.MatchID, models.MatchActive).
			Updates(map[string]any{"status": models.MatchEnded, "ended_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Partner ended it between our read and write.
			return gorm.ErrRecordNotFound
		}
		err = tx.Model(&models.MatchParticipant{}).
			Where("match_id = ?", st.MatchID).
			Update("active", false).Error
		if err != nil {
			return err
		}
		state = st
		return nil
	})
	if err != nil {
		return nil, mapErr("end match", err)
	}
	return state, nil
}

// MarkRevealed sets the caller's reveal flag on their active match.
// The flag only ever flips false -> true; a repeat call reports
// AlreadyRevealed so identities are disclosed at most once per side.
//
// A first-time flip also bumps the reveals counter on the match row and
// then re-reads the partner's flag. The two participant rows are
// distinct, so under read committed two concurrent first-time reveals
// would each see the other's flag as stale false and neither call would
// count as completing the pair. The counter update locks the shared
// match row; the later transaction waits there and its re-read observes
// the earlier flip.
func (s *Store) MarkRevealed(ctx context.Context, userID int64) (*storage.MatchState, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var state *storage.MatchState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := activeState(tx, userID)
		if err != nil {
			return err
		}

		res := tx.Model(&models.MatchParticipant{}).
			Where("match_id = ? AND user_id = ? AND revealed = ?", st.MatchID, userID, false).
			Update("revealed", true)
		if res.Error != nil {
			return res.Error
		}
		st.AlreadyRevealed = res.RowsAffected == 0
		st.YouRevealed = true

		if !st.AlreadyRevealed {
			err := tx.Model(&models.Match{}).
				Where("id = ?", st.MatchID).
				Update("reveals", gorm.Expr("reveals + 1")).Error
			if err != nil {
				return err
			}

			var partner models.MatchParticipant
			err = tx.Where("match_id = ? AND user_id <> ?", st.MatchID, userID).
				First(&partner).Error
			if err != nil {
				return err
			}
			st.PartnerRevealed = partner.Revealed
		}

		state = st
		return nil
	})
	if err != nil {
		return nil, mapErr("mark revealed", err)
	}
	return state, nil
}

// activeState loads both participant rows of the caller's active match.
func activeState(tx *gorm.DB, userID int64) (*storage.MatchState, error) {
	var mine models.MatchParticipant
	err := tx.Where("user_id = ? AND active = ?", userID, true).
		First(&mine).Error
	if err != nil {
		return nil, err
	}

	var partner models.MatchParticipant
	err = tx.Where("match_id = ? AND user_id <> ?", mine.MatchID, userID).
		First(&partner).Error
	if err != nil {
		return nil, err
	}

	return &storage.MatchState{
		MatchID:         mine.MatchID,
		PartnerID:       partner.UserID,
		YouRevealed:     mine.Revealed,
		PartnerRevealed: partner.Revealed,
	}, nil
}
