package gormdb

import (
	"context"

	"blindchat/internal/models"
	"blindchat/internal/storage"
)

// ProfileExists reports whether a profile row exists for the user.
func (s *Store) ProfileExists(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("telegram_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, mapErr("profile exists", err)
	}
	return count > 0, nil
}

// CreateProfile inserts a fresh profile at the first registration step.
// A duplicate insert surfaces as ErrAlreadyExists via the primary key,
// so concurrent /start commands cannot create two rows.
func (s *Store) CreateProfile(ctx context.Context, userID int64, username, firstName string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	profile := models.Profile{
		TelegramID:       userID,
		Username:         username,
		FirstName:        firstName,
		RegistrationStep: models.StepAge,
		Active:           true,
	}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return mapErr("create profile", err)
	}
	return nil
}

// GetProfile loads a profile or returns ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var profile models.Profile
	err := s.db.WithContext(ctx).
		Where("telegram_id = ?", userID).
		First(&profile).Error
	if err != nil {
		return nil, mapErr("get profile", err)
	}
	return &profile, nil
}

func (s *Store) SetAge(ctx context.Context, userID int64, age int) error {
	return s.advance(ctx, userID, models.StepAge, map[string]any{"age": age})
}

func (s *Store) SetGender(ctx context.Context, userID int64, gender models.Gender) error {
	return s.advance(ctx, userID, models.StepGender, map[string]any{"gender": gender})
}

func (s *Store) SetLookingFor(ctx context.Context, userID int64, pref models.Preference) error {
	return s.advance(ctx, userID, models.StepLookingFor, map[string]any{"looking_for": pref})
}

func (s *Store) SetBio(ctx context.Context, userID int64, bio string) error {
	return s.advance(ctx, userID, models.StepBio, map[string]any{"bio": bio})
}

// advance writes one registration field and moves the step forward in a
// single conditional update. The WHERE guard on the current step makes
// the transition monotonic: a duplicate or out-of-order submission
// affects zero rows and comes back as ErrStaleStep.
func (s *Store) advance(ctx context.Context, userID int64, from models.RegistrationStep, fields map[string]any) error {
	next, ok := from.Next()
	if !ok {
		return storage.ErrStaleStep
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	fields["registration_step"] = next
	res := s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("telegram_id = ? AND registration_step = ?", userID, from).
		Updates(fields)
	if res.Error != nil {
		return mapErr("advance registration", res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrStaleStep
	}
	return nil
}
