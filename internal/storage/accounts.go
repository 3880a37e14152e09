package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

const accountColumns = `id, display_name, credential_hash, account_class, access_class, must_change_credential, created_at`

// CreateAccount stores a new account.
func (s *SQLiteStorage) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := service.ValidateAccount(account); err != nil {
		return err
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	account.CreatedAt = utc(account.CreatedAt)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, account.ID, account.DisplayName, account.CredentialHash, string(account.Class),
		string(account.Access), account.MustChangeCredential, account.CreatedAt)
	if err != nil {
		return common.NewStoreError("create account", err)
	}

	s.accountCache.invalidate(account.ID)
	return nil
}

// GetAccount retrieves an account, serving repeat reads from the cache.
func (s *SQLiteStorage) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	if account, ok := s.accountCache.get(id); ok {
		return account, nil
	}

	gen := s.accountCache.generation()
	account, err := getAccountTx(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	s.accountCache.put(id, *account, gen)
	return account, nil
}

// getAccountTx reads straight from the database, bypassing the cache.
func getAccountTx(ctx context.Context, q queryable, id string) (*model.Account, error) {
	account, err := scanAccount(q.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError("account", id)
	}
	if err != nil {
		return nil, common.NewStoreError("get account", err)
	}
	return account, nil
}

// ListAccounts returns every account ordered by display name.
func (s *SQLiteStorage) ListAccounts(ctx context.Context) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY display_name COLLATE NOCASE, id
	`)
	if err != nil {
		return nil, common.NewStoreError("list accounts", err)
	}
	defer func() { _ = rows.Close() }()

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
func (s *SQLiteStorage) CountAccounts(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count); err != nil {
		return 0, common.NewStoreError("count accounts", err)
	}
	return count, nil
}

// UpdateAccount replaces the mutable fields of an existing account.
func (s *SQLiteStorage) UpdateAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := service.ValidateAccount(account); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET display_name = ?, credential_hash = ?, account_class = ?,
			access_class = ?, must_change_credential = ?
		WHERE id = ?
	`, account.DisplayName, account.CredentialHash, string(account.Class),
		string(account.Access), account.MustChangeCredential, account.ID)
	s.accountCache.invalidate(account.ID)
	if err != nil {
		return common.NewStoreError("update account", err)
	}

	return requireAffected(result, "account", account.ID)
}

// DeleteAccount removes an account. Requests and records keep their reference.
func (s *SQLiteStorage) DeleteAccount(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	s.accountCache.invalidate(id)
	if err != nil {
		return common.NewStoreError("delete account", err)
	}

	return requireAffected(result, "account", id)
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var account model.Account
	var class, access string
	if err := row.Scan(
		&account.ID,
		&account.DisplayName,
		&account.CredentialHash,
		&class,
		&access,
		&account.MustChangeCredential,
		&account.CreatedAt,
	); err != nil {
		return nil, err
	}
	account.Class = model.AccountClass(class)
	account.Access = model.AccessClass(access)
	return &account, nil
}
