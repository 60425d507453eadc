package auth

import "context"

type contextKey string

const (
	identityKey    contextKey = "auth_identity"
	codeSessionKey contextKey = "code_session"
)

type Identity struct {
	AccountID int64
	SID       string
	Role      string
	Phone     string
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// WithCodeSession binds the id of the pending-code session to the request.
// It is unrelated to the token session carried in Identity.SID.
func WithCodeSession(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, codeSessionKey, sid)
}

func CodeSessionFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(codeSessionKey).(string)
	return sid, ok && sid != ""
}
