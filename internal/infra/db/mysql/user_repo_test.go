package mysql

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/domain/users"
	"github.com/bryanwahyu/docguard/internal/testutil"
)

func TestUserRepositoryAddCounters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestUser(t, db, 1, "alice")
	repo := NewUserRepository(db)
	ctx := context.Background()

	c, err := repo.AddCounters(ctx, 1, map[users.Counter]int64{
		users.CounterSensitiveItemsDetected: 3,
		users.CounterNonDetectedItems:       1,
	})
	if err != nil {
		t.Fatalf("AddCounters failed: %v", err)
	}
	if c.SensitiveItemsDetected != 3 || c.NonDetectedItems != 1 {
		t.Errorf("Expected 3/1, got %d/%d", c.SensitiveItemsDetected, c.NonDetectedItems)
	}
	if c.DocumentsSaved != 0 || c.DocumentsProcessed != 0 || c.DocumentsShared != 0 {
		t.Errorf("Expected untouched counters to stay 0, got %+v", c)
	}

	c, err = repo.AddCounters(ctx, 1, map[users.Counter]int64{users.CounterSensitiveItemsDetected: 2})
	if err != nil {
		t.Fatalf("AddCounters failed: %v", err)
	}
	if c.SensitiveItemsDetected != 5 {
		t.Errorf("Expected 5, got %d", c.SensitiveItemsDetected)
	}

	u, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if u.Username != "alice" || u.Counters != c {
		t.Errorf("Expected stored counters %+v, got %+v", c, u.Counters)
	}
}

func TestUserRepositoryMissingUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	if _, err := repo.Get(ctx, 99); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if _, err := repo.AddCounters(ctx, 99, map[users.Counter]int64{users.CounterDocumentsSaved: 1}); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("AddCounters: expected ErrNotFound, got %v", err)
	}
	if err := repo.ResetCounters(ctx, 99); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("ResetCounters: expected ErrNotFound, got %v", err)
	}
}

func TestUserRepositoryRejectsUnknownCounter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestUser(t, db, 1, "alice")
	repo := NewUserRepository(db)

	_, err := repo.AddCounters(context.Background(), 1, map[users.Counter]int64{"bogus": 1})
	if err == nil {
		t.Fatal("Expected error for unknown counter")
	}
}

func TestUserRepositoryResetCounters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestUser(t, db, 1, "alice")
	repo := NewUserRepository(db)
	ctx := context.Background()

	deltas := map[users.Counter]int64{}
	for _, c := range users.AllCounters {
		deltas[c] = 4
	}
	if _, err := repo.AddCounters(ctx, 1, deltas); err != nil {
		t.Fatalf("AddCounters failed: %v", err)
	}
	if err := repo.ResetCounters(ctx, 1); err != nil {
		t.Fatalf("ResetCounters failed: %v", err)
	}
	// resetting zeroed counters again must still succeed
	if err := repo.ResetCounters(ctx, 1); err != nil {
		t.Fatalf("second ResetCounters failed: %v", err)
	}
	u, err := repo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if u.Counters != (users.Counters{}) {
		t.Errorf("Expected all counters zero, got %+v", u.Counters)
	}
}

func TestUserRepositoryConcurrentIncrements(t *testing.T) {
	db := testutil.SetupConcurrentTestDB(t)
	testutil.CreateTestUser(t, db, 1, "alice")
	repo := NewUserRepository(db)

	const workers = 40
	const delta = 3
	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.AddCounters(context.Background(), 1, map[users.Counter]int64{
				users.CounterSensitiveItemsDetected: delta,
			}); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent AddCounters failed: %v", err)
	}

	u, err := repo.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if u.Counters.SensitiveItemsDetected != workers*delta {
		t.Errorf("Expected %d, got %d", workers*delta, u.Counters.SensitiveItemsDetected)
	}
}
