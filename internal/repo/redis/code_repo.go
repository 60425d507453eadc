package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	accountsvc "github.com/ivankudzin/phoneauth/internal/services/accounts"
)

const pendingCodesPrefix = "pending_codes:"

// CodeRepo keeps pending entry codes in one hash per code session, keyed by
// phone. The hash expires with the session.
type CodeRepo struct {
	client     *goredis.Client
	sessionTTL time.Duration
}

func NewCodeRepo(client *goredis.Client, sessionTTL time.Duration) *CodeRepo {
	if sessionTTL <= 0 {
		sessionTTL = 2 * time.Hour
	}
	return &CodeRepo{client: client, sessionTTL: sessionTTL}
}

func (r *CodeRepo) Put(ctx context.Context, sid, phone, code string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" || phone == "" || code == "" {
		return accountsvc.ErrInvalidInput
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, pendingCodesKey(sid), phone, code)
	pipe.Expire(ctx, pendingCodesKey(sid), r.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store pending code: %w", err)
	}

	return nil
}

func (r *CodeRepo) Peek(ctx context.Context, sid, phone string) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" {
		return "", nil
	}

	code, err := r.client.HGet(ctx, pendingCodesKey(sid), phone).Result()
	if err != nil {
		if err == goredis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("peek pending code: %w", err)
	}

	return code, nil
}

// Pop reads and deletes the pending code for phone in one MULTI/EXEC so two
// attempts on the same session cannot both observe it. A missing entry yields "".
func (r *CodeRepo) Pop(ctx context.Context, sid, phone string) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" {
		return "", nil
	}

	var get *goredis.StringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		get = pipe.HGet(ctx, pendingCodesKey(sid), phone)
		pipe.HDel(ctx, pendingCodesKey(sid), phone)
		return nil
	})
	if err != nil && err != goredis.Nil {
		return "", fmt.Errorf("pop pending code: %w", err)
	}

	code, err := get.Result()
	if err != nil {
		if err == goredis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("read popped code: %w", err)
	}

	return code, nil
}

func pendingCodesKey(sid string) string {
	return pendingCodesPrefix + sid
}
