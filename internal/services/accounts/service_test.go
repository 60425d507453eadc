package accounts_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ivankudzin/phoneauth/internal/domain/model"
	accountsvc "github.com/ivankudzin/phoneauth/internal/services/accounts"
)

type serviceFixture struct {
	svc       *accountsvc.Service
	directory *fakeDirectory
	codes     *memoryCodeStore
	notifier  *recordingNotifier
}

func newServiceFixture(t *testing.T, template string) serviceFixture {
	t.Helper()

	directory := newFakeDirectory()
	codes := newMemoryCodeStore()
	notifier := &recordingNotifier{}
	svc := accountsvc.NewService(directory, codes, notifier, nil, nil, accountsvc.Config{MessageTemplate: template})

	return serviceFixture{svc: svc, directory: directory, codes: codes, notifier: notifier}
}

func TestRequestCodeCreatesThenResends(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()

	first, err := f.svc.RequestCode(ctx, "sid-1", "70000000001")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if !first.Created {
		t.Fatalf("first request should create the account")
	}
	if len(first.Account.InviteCode) != 6 {
		t.Fatalf("unexpected invite code %q", first.Account.InviteCode)
	}
	firstCode := f.notifier.last().message

	second, err := f.svc.RequestCode(ctx, "sid-1", "70000000001")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if second.Created {
		t.Fatalf("second request should reuse the account")
	}
	if second.Account.ID != first.Account.ID || second.Account.InviteCode != first.Account.InviteCode {
		t.Fatalf("account changed between requests: %+v vs %+v", first.Account, second.Account)
	}

	secondCode := f.notifier.last().message
	if secondCode == firstCode {
		t.Fatalf("resent code should differ from the previous one: %s", secondCode)
	}

	pending, _ := f.codes.Peek(ctx, "sid-1", "70000000001")
	if pending != secondCode {
		t.Fatalf("pending code %q does not match sent code %q", pending, secondCode)
	}
}

func TestRequestCodeRejectsMalformedPhone(t *testing.T) {
	f := newServiceFixture(t, "")

	for _, phone := range []string{"", "7000000000", "700000000012", "7000000000a", "+7000000000"} {
		_, err := f.svc.RequestCode(context.Background(), "sid-1", phone)
		if !errors.Is(err, accountsvc.ErrInvalidPhone) {
			t.Fatalf("phone %q: expected ErrInvalidPhone, got %v", phone, err)
		}
	}
	if f.notifier.count() != 0 {
		t.Fatalf("no message should be sent for malformed phones")
	}
}

func TestRequestCodeRetriesInviteCodeCollision(t *testing.T) {
	f := newServiceFixture(t, "")
	f.directory.collide = 2

	res, err := f.svc.RequestCode(context.Background(), "sid-1", "70000000001")
	if err != nil {
		t.Fatalf("request code: %v", err)
	}
	if !res.Created {
		t.Fatalf("expected account to be created after retries")
	}
	if f.directory.createCalls != 3 {
		t.Fatalf("expected 3 create attempts, got %d", f.directory.createCalls)
	}
}

func TestRequestCodeAppliesMessageTemplate(t *testing.T) {
	f := newServiceFixture(t, "Your code: %s")
	ctx := context.Background()

	if _, err := f.svc.RequestCode(ctx, "sid-1", "70000000001"); err != nil {
		t.Fatalf("request code: %v", err)
	}

	pending, _ := f.codes.Peek(ctx, "sid-1", "70000000001")
	sent := f.notifier.last()
	if sent.phone != "70000000001" || sent.message != "Your code: "+pending {
		t.Fatalf("unexpected message: %+v", sent)
	}
}

func TestAuthenticateConsumesCode(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()

	if _, err := f.svc.RequestCode(ctx, "sid-1", "70000000001"); err != nil {
		t.Fatalf("request code: %v", err)
	}
	code := f.notifier.last().message

	account, err := f.svc.Authenticate(ctx, "sid-1", "70000000001", code)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if account.Phone != "70000000001" {
		t.Fatalf("unexpected account: %+v", account)
	}

	if _, err := f.svc.Authenticate(ctx, "sid-1", "70000000001", code); !errors.Is(err, accountsvc.ErrInvalidCredentials) {
		t.Fatalf("replayed code should fail, got %v", err)
	}
}

func TestAuthenticateWrongCodeStillConsumes(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()

	if _, err := f.svc.RequestCode(ctx, "sid-1", "70000000001"); err != nil {
		t.Fatalf("request code: %v", err)
	}
	code := f.notifier.last().message
	wrong := "0000"
	if code == wrong {
		wrong = "1111"
	}

	if _, err := f.svc.Authenticate(ctx, "sid-1", "70000000001", wrong); !errors.Is(err, accountsvc.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, "sid-1", "70000000001", code); !errors.Is(err, accountsvc.ErrInvalidCredentials) {
		t.Fatalf("correct code after a failed attempt should fail, got %v", err)
	}
}

func TestAuthenticateRejectsCodeFromOtherSession(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()

	if _, err := f.svc.RequestCode(ctx, "sid-1", "70000000001"); err != nil {
		t.Fatalf("request code: %v", err)
	}
	code := f.notifier.last().message

	if _, err := f.svc.Authenticate(ctx, "sid-2", "70000000001", code); !errors.Is(err, accountsvc.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateRejectsCodeIssuedForOtherPhone(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()

	if _, err := f.svc.RequestCode(ctx, "sid-1", "70000000002"); err != nil {
		t.Fatalf("request code for 70000000002: %v", err)
	}
	ownCode := f.notifier.last().message

	// Entry codes may collide across phones; redraw until they differ.
	var otherCode string
	for i := 0; i < 10; i++ {
		if _, err := f.svc.RequestCode(ctx, "sid-1", "70000000001"); err != nil {
			t.Fatalf("request code for 70000000001: %v", err)
		}
		otherCode = f.notifier.last().message
		if otherCode != ownCode {
			break
		}
	}
	if otherCode == ownCode {
		t.Fatalf("could not draw distinct codes")
	}

	if _, err := f.svc.Authenticate(ctx, "sid-1", "70000000002", otherCode); !errors.Is(err, accountsvc.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if pending, _ := f.codes.Peek(ctx, "sid-1", "70000000001"); pending != otherCode {
		t.Fatalf("code of the other phone must stay pending, got %q", pending)
	}
}

func TestAuthenticateRequiresExactCode(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()

	if _, err := f.svc.RequestCode(ctx, "sid-1", "70000000001"); err != nil {
		t.Fatalf("request code: %v", err)
	}
	code := f.notifier.last().message

	if _, err := f.svc.Authenticate(ctx, "sid-1", "70000000001", " "+code+" "); !errors.Is(err, accountsvc.ErrInvalidCredentials) {
		t.Fatalf("padded code should fail, got %v", err)
	}
}

func TestRequestCodeStoreFailureCreatesNothing(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()
	f.codes.failPuts = 1

	if _, err := f.svc.RequestCode(ctx, "sid-1", "70000000001"); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if f.directory.createCalls != 0 {
		t.Fatalf("account must not be created when the code cannot be stored")
	}
	if f.notifier.count() != 0 {
		t.Fatalf("nothing should be dispatched")
	}

	res, err := f.svc.RequestCode(ctx, "sid-1", "70000000001")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !res.Created {
		t.Fatalf("retry should report the account as created")
	}
}

func TestAuthenticateUnknownPhonePopsSession(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()
	_ = f.codes.Put(ctx, "sid-1", "70000000009", "1234")

	if _, err := f.svc.Authenticate(ctx, "sid-1", "70000000009", "1234"); !errors.Is(err, accountsvc.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if pending, _ := f.codes.Peek(ctx, "sid-1", "70000000009"); pending != "" {
		t.Fatalf("pending entry should be consumed, got %q", pending)
	}
}

func TestAuthenticateEmptyInputDoesNotTouchStore(t *testing.T) {
	f := newServiceFixture(t, "")

	if _, err := f.svc.Authenticate(context.Background(), "sid-1", "", "1234"); !errors.Is(err, accountsvc.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.svc.Authenticate(context.Background(), "sid-1", "70000000001", " "); !errors.Is(err, accountsvc.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if f.codes.pops != 0 {
		t.Fatalf("empty credentials should not pop, got %d pops", f.codes.pops)
	}
}

func TestProfileIncludesReferralsAndReferrer(t *testing.T) {
	f := newServiceFixture(t, "")
	ctx := context.Background()

	referrer, err := f.svc.RequestCode(ctx, "sid-1", "70000000001")
	if err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	invitee, err := f.svc.RequestCode(ctx, "sid-1", "70000000002")
	if err != nil {
		t.Fatalf("create invitee: %v", err)
	}
	f.directory.link(invitee.Account.ID, referrer.Account.ID)

	profile, err := f.svc.Profile(ctx, referrer.Account.ID)
	if err != nil {
		t.Fatalf("referrer profile: %v", err)
	}
	if profile.Phone != "70000000001" || profile.InviteCode != referrer.Account.InviteCode {
		t.Fatalf("unexpected referrer profile: %+v", profile)
	}
	if len(profile.ReferralPhones) != 1 || profile.ReferralPhones[0] != "70000000002" {
		t.Fatalf("unexpected referrals: %v", profile.ReferralPhones)
	}
	if profile.ReferrerPhone != nil {
		t.Fatalf("referrer should have no referrer of its own")
	}

	inviteeProfile, err := f.svc.Profile(ctx, invitee.Account.ID)
	if err != nil {
		t.Fatalf("invitee profile: %v", err)
	}
	if inviteeProfile.ReferrerPhone == nil || *inviteeProfile.ReferrerPhone != "70000000001" {
		t.Fatalf("unexpected referrer phone: %v", inviteeProfile.ReferrerPhone)
	}
	if inviteeProfile.ReferrerInviteCode == nil || *inviteeProfile.ReferrerInviteCode != referrer.Account.InviteCode {
		t.Fatalf("unexpected referrer invite code: %v", inviteeProfile.ReferrerInviteCode)
	}
	if len(inviteeProfile.ReferralPhones) != 0 {
		t.Fatalf("invitee should have no referrals: %v", inviteeProfile.ReferralPhones)
	}
}

func TestProfileUnknownAccount(t *testing.T) {
	f := newServiceFixture(t, "")

	if _, err := f.svc.Profile(context.Background(), 42); !errors.Is(err, model.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
