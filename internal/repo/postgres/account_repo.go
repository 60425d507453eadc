package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/phoneauth/internal/domain/model"
)

const (
	uniqueViolation          = "23505"
	inviteCodeConstraintName = "accounts_invite_code_key"
)

const accountColumns = `id, phone, invite_code, invited_by, role, email, country, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func (r *AccountRepo) FindByPhone(ctx context.Context, phone string) (model.Account, error) {
	if r.pool == nil {
		return model.Account{}, fmt.Errorf("postgres pool is nil")
	}

	account, err := scanAccount(r.pool.QueryRow(ctx, `
SELECT `+accountColumns+`
FROM accounts
WHERE phone = $1
`, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, model.ErrAccountNotFound
		}
		return model.Account{}, fmt.Errorf("find account by phone: %w", err)
	}

	return account, nil
}

func (r *AccountRepo) FindByID(ctx context.Context, id int64) (model.Account, error) {
	if r.pool == nil {
		return model.Account{}, fmt.Errorf("postgres pool is nil")
	}

	account, err := scanAccount(r.pool.QueryRow(ctx, `
SELECT `+accountColumns+`
FROM accounts
WHERE id = $1
`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, model.ErrAccountNotFound
		}
		return model.Account{}, fmt.Errorf("find account by id: %w", err)
	}

	return account, nil
}

func (r *AccountRepo) FindByInviteCode(ctx context.Context, code string) (model.Account, error) {
	if r.pool == nil {
		return model.Account{}, fmt.Errorf("postgres pool is nil")
	}

	account, err := scanAccount(r.pool.QueryRow(ctx, `
SELECT `+accountColumns+`
FROM accounts
WHERE invite_code = $1
`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Account{}, model.ErrAccountNotFound
		}
		return model.Account{}, fmt.Errorf("find account by invite_code: %w", err)
	}

	return account, nil
}

func (r *AccountRepo) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM accounts WHERE invite_code = $1)
`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check invite_code: %w", err)
	}

	return exists, nil
}

// CreateIfAbsent inserts an account for phone. When another writer created
// the phone first, the stored row is returned with created=false. A clash on
// invite_code surfaces as model.ErrInviteCodeTaken so the caller can draw
// another code.
func (r *AccountRepo) CreateIfAbsent(ctx context.Context, phone, inviteCode, role string) (model.Account, bool, error) {
	if r.pool == nil {
		return model.Account{}, false, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(role) == "" {
		role = model.RoleUser
	}

	account, err := scanAccount(r.pool.QueryRow(ctx, `
INSERT INTO accounts (phone, invite_code, role, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (phone) DO NOTHING
RETURNING `+accountColumns+`
`, phone, inviteCode, role))
	if err == nil {
		return account, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == inviteCodeConstraintName {
			return model.Account{}, false, model.ErrInviteCodeTaken
		}
		return model.Account{}, false, fmt.Errorf("insert account: %w", err)
	}

	existing, err := r.FindByPhone(ctx, phone)
	if err != nil {
		return model.Account{}, false, err
	}
	return existing, false, nil
}

// AssignReferrer sets invited_by once. The row is locked first so the
// conflict check and the update see the same state.
func (r *AccountRepo) AssignReferrer(ctx context.Context, accountID, referrerID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if accountID <= 0 || referrerID <= 0 {
		return fmt.Errorf("invalid referral pair")
	}
	if accountID == referrerID {
		return fmt.Errorf("account cannot refer itself")
	}

	return WithTx(ctx, r.pool, lockingTx, func(ctx context.Context, tx pgx.Tx) error {
		var invitedBy *int64
		err := tx.QueryRow(ctx, `
SELECT invited_by
FROM accounts
WHERE id = $1
FOR UPDATE
`, accountID).Scan(&invitedBy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrAccountNotFound
			}
			return fmt.Errorf("lock account: %w", err)
		}
		if invitedBy != nil {
			return model.ErrReferrerConflict
		}

		tag, err := tx.Exec(ctx, `
UPDATE accounts
SET invited_by = $2,
	updated_at = NOW()
WHERE id = $1 AND invited_by IS NULL
`, accountID, referrerID)
		if err != nil {
			return fmt.Errorf("update invited_by: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrReferrerConflict
		}

		return nil
	})
}

func (r *AccountRepo) ListReferralPhones(ctx context.Context, accountID int64) ([]string, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT phone
FROM accounts
WHERE invited_by = $1
`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query referrals: %w", err)
	}
	defer rows.Close()

	phones := make([]string, 0)
	for rows.Next() {
		var phone string
		if err := rows.Scan(&phone); err != nil {
			return nil, fmt.Errorf("scan referral phone: %w", err)
		}
		phones = append(phones, phone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referrals: %w", err)
	}

	return phones, nil
}

func (r *AccountRepo) UpdateRole(ctx context.Context, accountID int64, role string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE accounts
SET role = $2,
	updated_at = NOW()
WHERE id = $1
`, accountID, role)
	if err != nil {
		return fmt.Errorf("update account role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}

	return nil
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var account model.Account
	err := row.Scan(
		&account.ID,
		&account.Phone,
		&account.InviteCode,
		&account.InvitedBy,
		&account.Role,
		&account.Email,
		&account.Country,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}
