package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/ivankudzin/phoneauth/internal/domain/model"
	redrepo "github.com/ivankudzin/phoneauth/internal/repo/redis"
	accountsvc "github.com/ivankudzin/phoneauth/internal/services/accounts"
	authsvc "github.com/ivankudzin/phoneauth/internal/services/auth"
	refsvc "github.com/ivankudzin/phoneauth/internal/services/referrals"
)

type memoryDirectory struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]model.Account
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{accounts: make(map[int64]model.Account)}
}

func (d *memoryDirectory) FindByPhone(_ context.Context, phone string) (model.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, account := range d.accounts {
		if account.Phone == phone {
			return account, nil
		}
	}
	return model.Account{}, model.ErrAccountNotFound
}

func (d *memoryDirectory) FindByID(_ context.Context, id int64) (model.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	account, ok := d.accounts[id]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return account, nil
}

func (d *memoryDirectory) FindByInviteCode(_ context.Context, code string) (model.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, account := range d.accounts {
		if account.InviteCode == code {
			return account, nil
		}
	}
	return model.Account{}, model.ErrAccountNotFound
}

func (d *memoryDirectory) CreateIfAbsent(_ context.Context, phone, inviteCode, role string) (model.Account, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, account := range d.accounts {
		if account.Phone == phone {
			return account, false, nil
		}
	}
	for _, account := range d.accounts {
		if account.InviteCode == inviteCode {
			return model.Account{}, false, model.ErrInviteCodeTaken
		}
	}
	d.nextID++
	account := model.Account{ID: d.nextID, Phone: phone, InviteCode: inviteCode, Role: role}
	d.accounts[account.ID] = account
	return account, true, nil
}

func (d *memoryDirectory) InviteCodeExists(_ context.Context, code string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, account := range d.accounts {
		if account.InviteCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (d *memoryDirectory) ListReferralPhones(_ context.Context, accountID int64) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	phones := []string{}
	for _, account := range d.accounts {
		if account.InvitedBy != nil && *account.InvitedBy == accountID {
			phones = append(phones, account.Phone)
		}
	}
	return phones, nil
}

func (d *memoryDirectory) AssignReferrer(_ context.Context, accountID, referrerID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	account, ok := d.accounts[accountID]
	if !ok {
		return model.ErrAccountNotFound
	}
	if account.InvitedBy != nil {
		return model.ErrReferrerConflict
	}
	account.InvitedBy = &referrerID
	d.accounts[accountID] = account
	return nil
}

type capturingNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func (n *capturingNotifier) Dispatch(_ context.Context, phone, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.codes == nil {
		n.codes = make(map[string]string)
	}
	n.codes[phone] = message
}

func (n *capturingNotifier) code(phone string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[phone]
}

type handlerFixture struct {
	directory *memoryDirectory
	notifier  *capturingNotifier
	accounts  *accountsvc.Service
	auth      *authsvc.Service
	referrals *refsvc.Service
}

func newHandlerFixture(t *testing.T) handlerFixture {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := redrepo.NewClient(mini.Addr(), "", 0)
	t.Cleanup(func() {
		_ = client.Close()
		mini.Close()
	})

	directory := newMemoryDirectory()
	notifier := &capturingNotifier{}
	accounts := accountsvc.NewService(directory, redrepo.NewCodeRepo(client, time.Hour), notifier, nil, nil, accountsvc.Config{})
	auth := authsvc.NewService(authsvc.NewJWTManager("test-secret", 5*time.Minute), redrepo.NewSessionRepo(client), 24*time.Hour)

	return handlerFixture{
		directory: directory,
		notifier:  notifier,
		accounts:  accounts,
		auth:      auth,
		referrals: refsvc.NewService(directory, nil),
	}
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withCodeSession(req *http.Request, sid string) *http.Request {
	return req.WithContext(authsvc.WithCodeSession(req.Context(), sid))
}

func withIdentity(req *http.Request, account model.Account) *http.Request {
	return req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{
		AccountID: account.ID,
		SID:       "token-sid",
		Role:      account.Role,
		Phone:     account.Phone,
	}))
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var payload T
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return payload
}
