package accounts_test

import (
	"context"
	"errors"
	"sync"

	"github.com/ivankudzin/phoneauth/internal/domain/model"
)

var errStoreDown = errors.New("code store unavailable")

type fakeDirectory struct {
	mu          sync.Mutex
	nextID      int64
	byID        map[int64]model.Account
	takenCodes  map[string]bool
	createCalls int
	// collide makes the next n inserts fail with ErrInviteCodeTaken.
	collide int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		byID:       make(map[int64]model.Account),
		takenCodes: make(map[string]bool),
	}
}

func (d *fakeDirectory) FindByPhone(_ context.Context, phone string) (model.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, account := range d.byID {
		if account.Phone == phone {
			return account, nil
		}
	}
	return model.Account{}, model.ErrAccountNotFound
}

func (d *fakeDirectory) FindByID(_ context.Context, id int64) (model.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	account, ok := d.byID[id]
	if !ok {
		return model.Account{}, model.ErrAccountNotFound
	}
	return account, nil
}

func (d *fakeDirectory) CreateIfAbsent(_ context.Context, phone, inviteCode, role string) (model.Account, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.createCalls++
	for _, account := range d.byID {
		if account.Phone == phone {
			return account, false, nil
		}
	}
	if d.collide > 0 {
		d.collide--
		return model.Account{}, false, model.ErrInviteCodeTaken
	}
	if d.takenCodes[inviteCode] {
		return model.Account{}, false, model.ErrInviteCodeTaken
	}

	d.nextID++
	account := model.Account{ID: d.nextID, Phone: phone, InviteCode: inviteCode, Role: role}
	d.byID[account.ID] = account
	d.takenCodes[inviteCode] = true
	return account, true, nil
}

func (d *fakeDirectory) InviteCodeExists(_ context.Context, code string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.takenCodes[code], nil
}

func (d *fakeDirectory) ListReferralPhones(_ context.Context, accountID int64) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var phones []string
	for _, account := range d.byID {
		if account.InvitedBy != nil && *account.InvitedBy == accountID {
			phones = append(phones, account.Phone)
		}
	}
	return phones, nil
}

func (d *fakeDirectory) link(accountID, referrerID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	account := d.byID[accountID]
	account.InvitedBy = &referrerID
	d.byID[accountID] = account
}

type memoryCodeStore struct {
	mu      sync.Mutex
	entries map[string]map[string]string
	pops    int
	// failPuts makes the next n Put calls fail.
	failPuts int
}

func newMemoryCodeStore() *memoryCodeStore {
	return &memoryCodeStore{entries: make(map[string]map[string]string)}
}

func (s *memoryCodeStore) Put(_ context.Context, sid, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failPuts > 0 {
		s.failPuts--
		return errStoreDown
	}
	if s.entries[sid] == nil {
		s.entries[sid] = make(map[string]string)
	}
	s.entries[sid][phone] = code
	return nil
}

func (s *memoryCodeStore) Peek(_ context.Context, sid, phone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[sid][phone], nil
}

func (s *memoryCodeStore) Pop(_ context.Context, sid, phone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pops++
	code := s.entries[sid][phone]
	delete(s.entries[sid], phone)
	return code, nil
}

type sentMessage struct {
	phone   string
	message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Dispatch(_ context.Context, phone, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{phone: phone, message: message})
}

func (n *recordingNotifier) last() sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentMessage{}
	}
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
