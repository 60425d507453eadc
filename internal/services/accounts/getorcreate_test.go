package accounts_test

import (
	"context"
	"errors"
	"testing"

	accountsvc "github.com/ivankudzin/phoneauth/internal/services/accounts"
)

var (
	errMissing = errors.New("missing")
	errClash   = errors.New("clash")
	errBroken  = errors.New("broken")
)

func TestGetOrCreateReturnsExisting(t *testing.T) {
	var afterCreated []bool

	value, created, err := accountsvc.GetOrCreate(context.Background(), "k", accountsvc.GetOrCreateOptions[string, int]{
		Lookup: func(context.Context, string) (int, error) { return 7, nil },
		Create: func(context.Context, string) (int, bool, error) {
			t.Fatalf("create must not run for an existing key")
			return 0, false, nil
		},
		NotFound: errMissing,
		After: func(_ context.Context, _ int, created bool) error {
			afterCreated = append(afterCreated, created)
			return nil
		},
	})
	if err != nil || value != 7 || created {
		t.Fatalf("unexpected result: value=%d created=%v err=%v", value, created, err)
	}
	if len(afterCreated) != 1 || afterCreated[0] {
		t.Fatalf("after should run once with created=false, got %v", afterCreated)
	}
}

func TestGetOrCreateRetriesRetryableErrors(t *testing.T) {
	calls := 0

	value, created, err := accountsvc.GetOrCreate(context.Background(), 1, accountsvc.GetOrCreateOptions[int, string]{
		Lookup: func(context.Context, int) (string, error) { return "", errMissing },
		Create: func(context.Context, int) (string, bool, error) {
			calls++
			if calls < 3 {
				return "", false, errClash
			}
			return "made", true, nil
		},
		NotFound:  errMissing,
		Retryable: func(err error) bool { return errors.Is(err, errClash) },
	})
	if err != nil || value != "made" || !created {
		t.Fatalf("unexpected result: value=%q created=%v err=%v", value, created, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 create calls, got %d", calls)
	}
}

func TestGetOrCreateStopsAfterMaxAttempts(t *testing.T) {
	calls := 0

	_, _, err := accountsvc.GetOrCreate(context.Background(), 1, accountsvc.GetOrCreateOptions[int, string]{
		Lookup: func(context.Context, int) (string, error) { return "", errMissing },
		Create: func(context.Context, int) (string, bool, error) {
			calls++
			return "", false, errClash
		},
		NotFound:    errMissing,
		Retryable:   func(err error) bool { return errors.Is(err, errClash) },
		MaxAttempts: 4,
	})
	if !errors.Is(err, errClash) {
		t.Fatalf("expected last retryable error, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 create calls, got %d", calls)
	}
}

func TestGetOrCreatePropagatesLookupFailure(t *testing.T) {
	_, _, err := accountsvc.GetOrCreate(context.Background(), 1, accountsvc.GetOrCreateOptions[int, string]{
		Lookup: func(context.Context, int) (string, error) { return "", errBroken },
		Create: func(context.Context, int) (string, bool, error) {
			t.Fatalf("create must not run when lookup fails unexpectedly")
			return "", false, nil
		},
		NotFound: errMissing,
	})
	if !errors.Is(err, errBroken) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestGetOrCreateAfterErrorFails(t *testing.T) {
	_, created, err := accountsvc.GetOrCreate(context.Background(), 1, accountsvc.GetOrCreateOptions[int, string]{
		Lookup:   func(context.Context, int) (string, error) { return "", errMissing },
		Create:   func(context.Context, int) (string, bool, error) { return "v", true, nil },
		NotFound: errMissing,
		After:    func(context.Context, string, bool) error { return errBroken },
	})
	if !errors.Is(err, errBroken) || created {
		t.Fatalf("expected after error, got created=%v err=%v", created, err)
	}
}
