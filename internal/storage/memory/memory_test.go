package memory

import (
	"context"
	"sync"
	"testing"

	"blindchat/internal/models"
	"blindchat/internal/storage"
)

func register(t *testing.T, s *Store, id int64, gender models.Gender, looking models.Preference) {
	t.Helper()
	ctx := context.Background()
	if err := s.CreateProfile(ctx, id, "user", "User"); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if err := s.SetAge(ctx, id, 25); err != nil {
		t.Fatalf("SetAge: %v", err)
	}
	if err := s.SetGender(ctx, id, gender); err != nil {
		t.Fatalf("SetGender: %v", err)
	}
	if err := s.SetLookingFor(ctx, id, looking); err != nil {
		t.Fatalf("SetLookingFor: %v", err)
	}
	if err := s.SetBio(ctx, id, "hi"); err != nil {
		t.Fatalf("SetBio: %v", err)
	}
}

func TestRegistrationGuards(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.CreateProfile(ctx, 1, "a", "A"); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if err := s.CreateProfile(ctx, 1, "a", "A"); err != storage.ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	// Skipping ahead is refused.
	if err := s.SetBio(ctx, 1, "hi"); err != storage.ErrStaleStep {
		t.Errorf("expected ErrStaleStep, got %v", err)
	}

	if err := s.SetAge(ctx, 1, 30); err != nil {
		t.Fatalf("SetAge: %v", err)
	}
	// Replaying a completed step is refused.
	if err := s.SetAge(ctx, 1, 99); err != storage.ErrStaleStep {
		t.Errorf("expected ErrStaleStep, got %v", err)
	}

	p, err := s.GetProfile(ctx, 1)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Age != 30 {
		t.Errorf("expected age 30, got %d", p.Age)
	}
	if p.RegistrationStep != models.StepGender {
		t.Errorf("expected step gender, got %s", p.RegistrationStep)
	}
}

func TestClaimFIFOAndRemoval(t *testing.T) {
	ctx := context.Background()
	s := New()

	register(t, s, 1, models.GenderMale, models.PrefFemale)
	register(t, s, 2, models.GenderFemale, models.PrefMale)
	register(t, s, 3, models.GenderFemale, models.PrefMale)

	// 2 enqueued before 3; the earlier entry wins.
	if err := s.Enqueue(ctx, 2); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Enqueue(ctx, 3); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Enqueue(ctx, 1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	partner, err := s.ClaimCompatiblePartner(ctx, 1)
	if err != nil {
		t.Fatalf("ClaimCompatiblePartner: %v", err)
	}
	if partner.TelegramID != 2 {
		t.Errorf("expected user 2 (earliest), got %d", partner.TelegramID)
	}

	// Both consumed entries are gone; user 3 still waits and cannot be
	// claimed by a second call from user 1's side.
	if _, ok := s.queue[1]; ok {
		t.Error("claimant's queue entry should be removed")
	}
	if _, ok := s.queue[2]; ok {
		t.Error("claimed entry should be removed")
	}
	if _, ok := s.queue[3]; !ok {
		t.Error("unclaimed entry should remain")
	}
}

func TestClaimIncompatible(t *testing.T) {
	ctx := context.Background()
	s := New()

	register(t, s, 1, models.GenderMale, models.PrefEveryone)
	register(t, s, 2, models.GenderFemale, models.PrefMale)

	if err := s.Enqueue(ctx, 2); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Literal comparison: "everyone" never equals a gender.
	if _, err := s.ClaimCompatiblePartner(ctx, 1); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSingleActiveMatch(t *testing.T) {
	ctx := context.Background()
	s := New()

	register(t, s, 1, models.GenderMale, models.PrefFemale)
	register(t, s, 2, models.GenderFemale, models.PrefMale)
	register(t, s, 3, models.GenderFemale, models.PrefMale)

	if _, err := s.OpenMatch(ctx, 1, 2); err != nil {
		t.Fatalf("OpenMatch: %v", err)
	}
	if _, err := s.OpenMatch(ctx, 3, 1); err != storage.ErrActiveMatchExists {
		t.Errorf("expected ErrActiveMatchExists, got %v", err)
	}
	if _, err := s.ActiveMatch(ctx, 3); err != storage.ErrNotFound {
		t.Errorf("user 3 should not be half-matched, got %v", err)
	}
}

func TestRevealLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	register(t, s, 1, models.GenderMale, models.PrefFemale)
	register(t, s, 2, models.GenderFemale, models.PrefMale)

	if _, err := s.OpenMatch(ctx, 1, 2); err != nil {
		t.Fatalf("OpenMatch: %v", err)
	}

	st, err := s.MarkRevealed(ctx, 1)
	if err != nil {
		t.Fatalf("MarkRevealed: %v", err)
	}
	if st.AlreadyRevealed || st.BothRevealed() {
		t.Errorf("unexpected state after first reveal: %+v", st)
	}

	st, err = s.MarkRevealed(ctx, 1)
	if err != nil {
		t.Fatalf("MarkRevealed: %v", err)
	}
	if !st.AlreadyRevealed {
		t.Error("second reveal by same user must report AlreadyRevealed")
	}

	st, err = s.MarkRevealed(ctx, 2)
	if err != nil {
		t.Fatalf("MarkRevealed: %v", err)
	}
	if !st.BothRevealed() || st.AlreadyRevealed {
		t.Errorf("partner's first reveal should complete the pair: %+v", st)
	}

	if _, err := s.EndMatch(ctx, 2); err != nil {
		t.Fatalf("EndMatch: %v", err)
	}
	if _, err := s.EndMatch(ctx, 1); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound after end, got %v", err)
	}
}

// A claim hammer: many mutually compatible users searching at once must
// produce disjoint pairs. With the conditional removal inside the lock,
// no queue entry can be consumed twice.
func TestConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	s := New()

	const pairs = 20
	for i := int64(1); i <= pairs; i++ {
		register(t, s, i, models.GenderMale, models.PrefFemale)
		register(t, s, pairs+i, models.GenderFemale, models.PrefMale)
		if err := s.Enqueue(ctx, i); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		if err := s.Enqueue(ctx, pairs+i); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	var mu sync.Mutex
	claimCounts := make(map[int64]int)

	var wg sync.WaitGroup
	for i := int64(1); i <= pairs; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			partner, err := s.ClaimCompatiblePartner(ctx, id)
			if err != nil {
				return
			}
			mu.Lock()
			claimCounts[partner.TelegramID]++
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(claimCounts) == 0 {
		t.Fatal("expected at least one successful claim")
	}
	for partner, n := range claimCounts {
		if n != 1 {
			t.Errorf("user %d was claimed %d times", partner, n)
		}
		if _, stillQueued := s.queue[partner]; stillQueued {
			t.Errorf("claimed user %d still has a queue entry", partner)
		}
	}
}
