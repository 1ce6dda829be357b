package gormdb

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blindchat/internal/models"
	"blindchat/internal/storage"
)

// claimBatch bounds how many FIFO candidates one claim attempt inspects
// before giving up. Entries ahead of us can disappear mid-scan when a
// concurrent searcher claims them first.
const claimBatch = 16

// Enqueue adds the user to the waiting queue. Re-enqueueing refreshes the
// timestamp instead of inserting a second row.
func (s *Store) Enqueue(ctx context.Context, userID int64) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	entry := models.QueueEntry{UserID: userID, EnqueuedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"enqueued_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return mapErr("enqueue", err)
	}
	return nil
}

// ClaimCompatiblePartner finds the earliest-enqueued compatible candidate
// and removes both queue entries inside one transaction.
//
// Compatibility is the literal-equality rule from models.Compatible,
// expressed in SQL: candidate.gender = requester.looking_for AND
// candidate.looking_for = requester.gender. FIFO order by enqueue time.
//
// The conditional DELETE of the candidate's row is the linearization
// point: if a concurrent searcher already consumed the entry the delete
// affects zero rows and we move on to the next candidate, so a queue
// entry never pairs twice.
func (s *Store) ClaimCompatiblePartner(ctx context.Context, userID int64) (*models.Profile, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var claimed *models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var me models.Profile
		if err := tx.Where("telegram_id = ?", userID).First(&me).Error; err != nil {
			return err
		}

		var candidates []models.Profile
		err := tx.Model(&models.Profile{}).
			Joins("JOIN queue_entries q ON q.user_id = profiles.telegram_id").
			Where("q.user_id <> ?", userID).
			Where("profiles.gender = ? AND profiles.looking_for = ?",
				string(me.LookingFor), string(me.Gender)).
			Order("q.enqueued_at ASC").
			Limit(claimBatch).
			Find(&candidates).Error
		if err != nil {
			return err
		}

		for i := range candidates {
			res := tx.Where("user_id = ?", candidates[i].TelegramID).
				Delete(&models.QueueEntry{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Someone else claimed this entry first.
				continue
			}
			if err := tx.Where("user_id = ?", userID).
				Delete(&models.QueueEntry{}).Error; err != nil {
				return err
			}
			claimed = &candidates[i]
			return nil
		}
		return gorm.ErrRecordNotFound
	})
	if err != nil {
		return nil, mapErr("claim partner", err)
	}
	if claimed == nil {
		return nil, storage.ErrNotFound
	}
	return claimed, nil
}
