package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

const accountColumns = `id, display_name, credential_hash, account_class, access_class, must_change_credential, created_at`

// CreateAccount stores a new account.
func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := service.ValidateAccount(account); err != nil {
		return err
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	account.CreatedAt = utc(account.CreatedAt)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.ID, account.DisplayName, account.CredentialHash, string(account.Class),
		string(account.Access), account.MustChangeCredential, account.CreatedAt)
	return common.NewStoreError("create account", err)
}

// GetAccount retrieves an account by identifier.
func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return getAccount(ctx, s.pool, id)
}

func getAccount(ctx context.Context, q querier, id string) (*model.Account, error) {
	account, err := scanAccount(q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("account", id)
	}
	if err != nil {
		return nil, common.NewStoreError("get account", err)
	}
	return account, nil
}

// ListAccounts returns every account ordered by display name.
func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY lower(display_name), id`)
	if err != nil {
		return nil, common.NewStoreError("list accounts", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, common.NewStoreError("scan account", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStoreError("list accounts", err)
	}
	return accounts, nil
}

// CountAccounts returns the number of stored accounts.
func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, common.NewStoreError("count accounts", err)
	}
	return count, nil
}

// UpdateAccount replaces the mutable fields of an existing account.
func (s *Store) UpdateAccount(ctx context.Context, account *model.Account) error {
	if err := service.ValidateAccount(account); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET display_name = $1, credential_hash = $2, account_class = $3,
			access_class = $4, must_change_credential = $5
		WHERE id = $6
	`, account.DisplayName, account.CredentialHash, string(account.Class),
		string(account.Access), account.MustChangeCredential, account.ID)
	if err != nil {
		return common.NewStoreError("update account", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("account", account.ID)
	}
	return nil
}

// DeleteAccount removes an account. Requests and records keep their reference.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return common.NewStoreError("delete account", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("account", id)
	}
	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var account model.Account
	var class, access string
	if err := row.Scan(&account.ID, &account.DisplayName, &account.CredentialHash,
		&class, &access, &account.MustChangeCredential, &account.CreatedAt); err != nil {
		return nil, err
	}
	account.Class = model.AccountClass(class)
	account.Access = model.AccessClass(access)
	return &account, nil
}
