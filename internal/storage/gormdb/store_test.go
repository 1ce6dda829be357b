package gormdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"blindchat/internal/models"
	"blindchat/internal/storage"
	"blindchat/internal/storage/gormdb"
)

// setup in-memory DB
func setupTestStore(t *testing.T) (*gormdb.Store, *gorm.DB) {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	// One pooled connection: every statement, including both sides of a
	// concurrent test, must see the same in-memory database.
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	store := gormdb.New(database, 5*time.Second, zap.NewNop())
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store, database
}

// registerUser walks a user through the whole onboarding sequence.
func registerUser(t *testing.T, s *gormdb.Store, id int64, gender models.Gender, looking models.Preference) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.CreateProfile(ctx, id, "user", "User"))
	require.NoError(t, s.SetAge(ctx, id, 25))
	require.NoError(t, s.SetGender(ctx, id, gender))
	require.NoError(t, s.SetLookingFor(ctx, id, looking))
	require.NoError(t, s.SetBio(ctx, id, "hi"))
}

func TestCreateProfileDuplicate(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	require.NoError(t, store.CreateProfile(ctx, 1, "alice", "Alice"))

	err := store.CreateProfile(ctx, 1, "alice", "Alice")
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestRegistrationAdvance(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	require.NoError(t, store.CreateProfile(ctx, 1, "alice", "Alice"))

	p, err := store.GetProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StepAge, p.RegistrationStep)

	require.NoError(t, store.SetAge(ctx, 1, 30))

	// The step already moved on; a replayed age submission affects
	// nothing.
	err = store.SetAge(ctx, 1, 99)
	assert.ErrorIs(t, err, storage.ErrStaleStep)

	p, err = store.GetProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, p.Age)
	assert.Equal(t, models.StepGender, p.RegistrationStep)

	require.NoError(t, store.SetGender(ctx, 1, models.GenderFemale))
	require.NoError(t, store.SetLookingFor(ctx, 1, models.PrefMale))
	require.NoError(t, store.SetBio(ctx, 1, "hello"))

	p, err = store.GetProfile(ctx, 1)
	require.NoError(t, err)
	assert.True(t, p.Registered())

	// Complete is terminal.
	err = store.SetBio(ctx, 1, "again")
	assert.ErrorIs(t, err, storage.ErrStaleStep)
}

func TestRegistrationOutOfOrder(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	require.NoError(t, store.CreateProfile(ctx, 1, "alice", "Alice"))

	// Gender before age: the guard on the current step rejects it.
	err := store.SetGender(ctx, 1, models.GenderFemale)
	assert.ErrorIs(t, err, storage.ErrStaleStep)
}

func TestGetProfileNotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.GetProfile(context.Background(), 404)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEnqueueUpserts(t *testing.T) {
	ctx := context.Background()
	store, database := setupTestStore(t)
	registerUser(t, store, 1, models.GenderMale, models.PrefFemale)

	require.NoError(t, store.Enqueue(ctx, 1))
	require.NoError(t, store.Enqueue(ctx, 1))

	var count int64
	require.NoError(t, database.Model(&models.QueueEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestClaimFIFO(t *testing.T) {
	ctx := context.Background()
	store, database := setupTestStore(t)

	registerUser(t, store, 1, models.GenderMale, models.PrefFemale)
	registerUser(t, store, 2, models.GenderFemale, models.PrefMale)
	registerUser(t, store, 3, models.GenderFemale, models.PrefMale)

	// Enqueue 3 before 2 with distinct timestamps.
	require.NoError(t, database.Create(&models.QueueEntry{
		UserID: 3, EnqueuedAt: time.Now().UTC().Add(-2 * time.Minute),
	}).Error)
	require.NoError(t, database.Create(&models.QueueEntry{
		UserID: 2, EnqueuedAt: time.Now().UTC().Add(-1 * time.Minute),
	}).Error)
	require.NoError(t, store.Enqueue(ctx, 1))

	partner, err := store.ClaimCompatiblePartner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), partner.TelegramID)

	// Both the winner's and the claimant's entries are gone; user 2
	// still waits.
	var remaining []models.QueueEntry
	require.NoError(t, database.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(2), remaining[0].UserID)
}

func TestClaimNoCompatibleCandidate(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	registerUser(t, store, 1, models.GenderMale, models.PrefFemale)
	registerUser(t, store, 2, models.GenderFemale, models.PrefFemale)

	require.NoError(t, store.Enqueue(ctx, 2))
	require.NoError(t, store.Enqueue(ctx, 1))

	// User 2 wants a woman; user 1 is a man. One-sided interest never
	// pairs.
	_, err := store.ClaimCompatiblePartner(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClaimEveryoneIsLiteral(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	registerUser(t, store, 1, models.GenderMale, models.PrefEveryone)
	registerUser(t, store, 2, models.GenderFemale, models.PrefMale)

	require.NoError(t, store.Enqueue(ctx, 2))
	require.NoError(t, store.Enqueue(ctx, 1))

	// "everyone" is compared as a literal value, not a wildcard, so the
	// open user matches nobody.
	_, err := store.ClaimCompatiblePartner(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.ClaimCompatiblePartner(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOpenMatchSingleActive(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	registerUser(t, store, 1, models.GenderMale, models.PrefFemale)
	registerUser(t, store, 2, models.GenderFemale, models.PrefMale)
	registerUser(t, store, 3, models.GenderFemale, models.PrefMale)

	_, err := store.OpenMatch(ctx, 1, 2)
	require.NoError(t, err)

	// User 1 is taken; the unique index rejects the second pairing.
	_, err = store.OpenMatch(ctx, 1, 3)
	assert.ErrorIs(t, err, storage.ErrActiveMatchExists)

	// User 3 must not be left half-matched by the rolled-back attempt.
	_, err = store.ActiveMatch(ctx, 3)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestActiveMatchViews(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	registerUser(t, store, 1, models.GenderMale, models.PrefFemale)
	registerUser(t, store, 2, models.GenderFemale, models.PrefMale)

	matchID, err := store.OpenMatch(ctx, 1, 2)
	require.NoError(t, err)

	st1, err := store.ActiveMatch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, matchID, st1.MatchID)
	assert.Equal(t, int64(2), st1.PartnerID)
	assert.False(t, st1.BothRevealed())

	st2, err := store.ActiveMatch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, matchID, st2.MatchID)
	assert.Equal(t, int64(1), st2.PartnerID)
}

func TestEndMatchThenRematch(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	registerUser(t, store, 1, models.GenderMale, models.PrefFemale)
	registerUser(t, store, 2, models.GenderFemale, models.PrefMale)

	first, err := store.OpenMatch(ctx, 1, 2)
	require.NoError(t, err)

	st, err := store.EndMatch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.PartnerID)

	// Ending again finds nothing: ended is terminal.
	_, err = store.EndMatch(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.EndMatch(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Both users are free again; a fresh pairing gets a fresh identity.
	second, err := store.OpenMatch(ctx, 1, 2)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestMarkRevealedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	registerUser(t, store, 1, models.GenderMale, models.PrefFemale)
	registerUser(t, store, 2, models.GenderFemale, models.PrefMale)

	_, err := store.OpenMatch(ctx, 1, 2)
	require.NoError(t, err)

	st, err := store.MarkRevealed(ctx, 1)
	require.NoError(t, err)
	assert.True(t, st.YouRevealed)
	assert.False(t, st.PartnerRevealed)
	assert.False(t, st.AlreadyRevealed)

	// Repeating the request flips nothing and says so.
	st, err = store.MarkRevealed(ctx, 1)
	require.NoError(t, err)
	assert.True(t, st.AlreadyRevealed)
	assert.False(t, st.BothRevealed())

	// The partner's consent completes the reveal. Order does not matter;
	// exactly one call per side reports AlreadyRevealed=false.
	st, err = store.MarkRevealed(ctx, 2)
	require.NoError(t, err)
	assert.True(t, st.BothRevealed())
	assert.False(t, st.AlreadyRevealed)

	st, err = store.MarkRevealed(ctx, 2)
	require.NoError(t, err)
	assert.True(t, st.BothRevealed())
	assert.True(t, st.AlreadyRevealed)
}

// Two first-time reveals racing each other: exactly one call must come
// back as the completing one, or the disclosure never fires and every
// later /reveal lands in the already-revealed branch.
func TestMarkRevealedConcurrentCompletion(t *testing.T) {
	ctx := context.Background()
	store, database := setupTestStore(t)

	registerUser(t, store, 1, models.GenderMale, models.PrefFemale)
	registerUser(t, store, 2, models.GenderFemale, models.PrefMale)

	_, err := store.OpenMatch(ctx, 1, 2)
	require.NoError(t, err)

	type result struct {
		st  *storage.MatchState
		err error
	}
	results := make(chan result, 2)
	for _, id := range []int64{1, 2} {
		go func(id int64) {
			st, err := store.MarkRevealed(ctx, id)
			results <- result{st: st, err: err}
		}(id)
	}

	completed := 0
	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		assert.False(t, r.st.AlreadyRevealed)
		assert.True(t, r.st.YouRevealed)
		if r.st.BothRevealed() {
			completed++
		}
	}
	assert.Equal(t, 1, completed, "exactly one reveal call completes the pair")

	var match models.Match
	require.NoError(t, database.First(&match).Error)
	assert.Equal(t, 2, match.Reveals)
}

func TestMarkRevealedWithoutMatch(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)
	registerUser(t, store, 1, models.GenderMale, models.PrefFemale)

	_, err := store.MarkRevealed(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRevealFlagsResetPerMatch(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	registerUser(t, store, 1, models.GenderMale, models.PrefFemale)
	registerUser(t, store, 2, models.GenderFemale, models.PrefMale)

	_, err := store.OpenMatch(ctx, 1, 2)
	require.NoError(t, err)
	_, err = store.MarkRevealed(ctx, 1)
	require.NoError(t, err)
	_, err = store.MarkRevealed(ctx, 2)
	require.NoError(t, err)
	_, err = store.EndMatch(ctx, 1)
	require.NoError(t, err)

	// A new match between the same pair starts anonymous again.
	_, err = store.OpenMatch(ctx, 1, 2)
	require.NoError(t, err)
	st, err := store.ActiveMatch(ctx, 1)
	require.NoError(t, err)
	assert.False(t, st.YouRevealed)
	assert.False(t, st.PartnerRevealed)
}
