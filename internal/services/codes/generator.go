package codes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	InviteCodeLength = 6
	EntryCodeLength  = 4

	inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	entryAlphabet  = "0123456789"

	defaultMaxInviteAttempts = 32
)

var ErrInviteCodeExhausted = errors.New("could not generate a unique invite code")

// ExistsFunc reports whether an invite code is already assigned.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

type Generator struct {
	random      io.Reader
	maxAttempts int
}

func NewGenerator() *Generator {
	return &Generator{
		random:      rand.Reader,
		maxAttempts: defaultMaxInviteAttempts,
	}
}

// NewGeneratorWithSource is used by tests that need deterministic draws.
func NewGeneratorWithSource(random io.Reader, maxAttempts int) *Generator {
	if random == nil {
		random = rand.Reader
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxInviteAttempts
	}
	return &Generator{random: random, maxAttempts: maxAttempts}
}

// InviteCode draws six alphanumeric characters and redraws while exists reports
// a collision. Uniqueness holds only at the moment of the check; the store's
// unique constraint is the final arbiter.
func (g *Generator) InviteCode(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := g.draw(inviteAlphabet, InviteCodeLength)
		if err != nil {
			return "", fmt.Errorf("draw invite code: %w", err)
		}
		if exists == nil {
			return code, nil
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check invite code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}

	return "", ErrInviteCodeExhausted
}

// EntryCode draws four digits; repeats across phones are allowed.
func (g *Generator) EntryCode() (string, error) {
	code, err := g.draw(entryAlphabet, EntryCodeLength)
	if err != nil {
		return "", fmt.Errorf("draw entry code: %w", err)
	}
	return code, nil
}

// EntryCodeExcept draws entry codes until one differs from previous.
func (g *Generator) EntryCodeExcept(previous string) (string, error) {
	for {
		code, err := g.EntryCode()
		if err != nil {
			return "", err
		}
		if code != previous {
			return code, nil
		}
	}
}

// draw samples uniformly from alphabet by rejecting bytes above the largest
// multiple of len(alphabet).
func (g *Generator) draw(alphabet string, length int) (string, error) {
	size := len(alphabet)
	limit := 256 - 256%size

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := io.ReadFull(g.random, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%size])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
