package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var changeAccountPasswordSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"is_first_login" = FALSE
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

// Accounts is the persistence surface for account records
type Accounts interface {
	repository.Repository[*Account]

	GetByLoginID(ctx context.Context, loginID string) (*Account, error)
	GetByLoginIDTx(ctx context.Context, tx bun.IDB, loginID string) (*Account, error)

	// Save persists the full row, including cleared lockout state
	Save(ctx context.Context, account *Account) (*Account, error)
	SaveTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)

	Provision(ctx context.Context, account *Account) (*Account, error)
	ProvisionTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)

	ChangePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ChangePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

// NewAccountsRepository builds the bun backed accounts repository
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "login_id"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) GetByLoginID(ctx context.Context, loginID string) (*Account, error) {
	return a.GetByLoginIDTx(ctx, a.db, loginID)
}

func (a *accounts) GetByLoginIDTx(ctx context.Context, tx bun.IDB, loginID string) (*Account, error) {
	record := &Account{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.login_id = ?", NormalizeLoginID(loginID)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"login_id": loginID,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) Save(ctx context.Context, account *Account) (*Account, error) {
	return a.SaveTx(ctx, a.db, account)
}

func (a *accounts) SaveTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	// write the whole row so a cleared lockout_expires_at persists as NULL
	_, err := tx.NewUpdate().
		Model(account).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (a *accounts) Provision(ctx context.Context, account *Account) (*Account, error) {
	return a.ProvisionTx(ctx, a.db, account)
}

func (a *accounts) ProvisionTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account)
	return a.Repository.CreateTx(ctx, tx, account)
}

func (a *accounts) ChangePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ChangePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *accounts) ChangePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, changeAccountPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func prepareAccountDefaults(account *Account) {
	if account == nil {
		return
	}

	account.LoginID = NormalizeLoginID(account.LoginID)
	account.EnsureStatus()

	if account.Role == "" {
		account.Role = RoleGeneralUser
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	// provisioned accounts stay in the first-login phase until the
	// temporary password is replaced
	if account.PasswordHash == "" {
		account.PasswordHash = RandomPasswordHash()
		account.IsFirstLogin = true
	}
}
