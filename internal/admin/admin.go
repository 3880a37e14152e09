// Package admin implements catalog and account management. Every operation
// except Bootstrap and ChangeCredential on one's own account requires an
// admin actor.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

// Store is the persistence admin operations need.
type Store interface {
	service.CatalogStore
	service.AccountStore
}

// Service performs administrative operations.
type Service struct {
	store    Store
	now      func() time.Time
	newID    func() string
	hashCost int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides generation of catalog item ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// New creates an admin service over store.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		now:      time.Now,
		newID:    uuid.NewString,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireAdmin(actor service.Actor, operation string) error {
	if !actor.IsAdmin() {
		return &common.ForbiddenError{AccountID: actor.AccountID, Operation: operation}
	}
	return nil
}

// ItemInput describes a new catalog item. An empty ID is generated.
type ItemInput struct {
	UnitPrice   decimal.Decimal
	ID          string
	Name        string
	Description string
	ImageRef    string
}

// ItemPatch lists the catalog item fields to change. Nil fields are kept.
type ItemPatch struct {
	Name        *string
	Description *string
	UnitPrice   *decimal.Decimal
	ImageRef    *string
}

// AddItem creates a catalog item.
func (s *Service) AddItem(ctx context.Context, actor service.Actor, in ItemInput) (*model.CatalogItem, error) {
	if err := requireAdmin(actor, "add catalog items"); err != nil {
		return nil, err
	}

	item := &model.CatalogItem{
		ID:          strings.TrimSpace(in.ID),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		UnitPrice:   in.UnitPrice,
		ImageRef:    strings.TrimSpace(in.ImageRef),
		CreatedAt:   s.now().UTC(),
	}
	if item.ID == "" {
		item.ID = s.newID()
	}

	if err := s.store.CreateCatalogItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem edits a catalog item. Price changes never touch existing ledger records.
func (s *Service) UpdateItem(ctx context.Context, actor service.Actor, id string, patch ItemPatch) (*model.CatalogItem, error) {
	if err := requireAdmin(actor, "edit catalog items"); err != nil {
		return nil, err
	}

	item, err := s.store.GetCatalogItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		item.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		item.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.UnitPrice != nil {
		item.UnitPrice = *patch.UnitPrice
	}
	if patch.ImageRef != nil {
		item.ImageRef = strings.TrimSpace(*patch.ImageRef)
	}

	if err := s.store.UpdateCatalogItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes a catalog item. Ready requests for it can no longer complete.
func (s *Service) DeleteItem(ctx context.Context, actor service.Actor, id string) error {
	if err := requireAdmin(actor, "delete catalog items"); err != nil {
		return err
	}
	return s.store.DeleteCatalogItem(ctx, id)
}

// AccountInput describes a new account.
type AccountInput struct {
	ID          string
	DisplayName string
	Credential  string
	Class       model.AccountClass
	Access      model.AccessClass
}

// AccountPatch lists the account fields to change. Nil fields are kept.
type AccountPatch struct {
	DisplayName *string
	Class       *model.AccountClass
	Access      *model.AccessClass
}

// AddAccount creates an account with the given credential. The account must
// change it on first use.
func (s *Service) AddAccount(ctx context.Context, actor service.Actor, in AccountInput) (*model.Account, error) {
	if err := requireAdmin(actor, "add accounts"); err != nil {
		return nil, err
	}
	return s.createAccount(ctx, in, true)
}

// Bootstrap creates the first admin account. It fails once any account exists.
func (s *Service) Bootstrap(ctx context.Context, in AccountInput) (*model.Account, error) {
	count, err := s.store.CountAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &common.ForbiddenError{AccountID: in.ID, Operation: "bootstrap an initialized store"}
	}

	in.Access = model.AccessAdmin
	if in.Class == "" {
		in.Class = model.ClassInternal
	}
	return s.createAccount(ctx, in, false)
}

func (s *Service) createAccount(ctx context.Context, in AccountInput, mustChange bool) (*model.Account, error) {
	hash, err := HashCredential(in.Credential, s.hashCost)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		ID:                   strings.TrimSpace(in.ID),
		DisplayName:          strings.TrimSpace(in.DisplayName),
		CredentialHash:       hash,
		Class:                in.Class,
		Access:               in.Access,
		MustChangeCredential: mustChange,
		CreatedAt:            s.now().UTC(),
	}
	if account.Access == "" {
		account.Access = model.AccessUser
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateAccount edits an account's name or classes. Existing requests keep
// the class they were filed under.
func (s *Service) UpdateAccount(ctx context.Context, actor service.Actor, id string, patch AccountPatch) (*model.Account, error) {
	if err := requireAdmin(actor, "edit accounts"); err != nil {
		return nil, err
	}
	if id == actor.AccountID && patch.Access != nil && *patch.Access != model.AccessAdmin {
		return nil, common.NewValidationError("access_class", "admins cannot demote themselves")
	}

	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.DisplayName != nil {
		account.DisplayName = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.Class != nil {
		account.Class = *patch.Class
	}
	if patch.Access != nil {
		account.Access = *patch.Access
	}

	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes an account. Its requests and ledger records remain.
func (s *Service) DeleteAccount(ctx context.Context, actor service.Actor, id string) error {
	if err := requireAdmin(actor, "delete accounts"); err != nil {
		return err
	}
	if id == actor.AccountID {
		return common.NewValidationError("id", "admins cannot delete themselves")
	}
	return s.store.DeleteAccount(ctx, id)
}

// ResetCredential replaces an account's credential with a random temporary
// one and returns it. The account must change it on next use.
func (s *Service) ResetCredential(ctx context.Context, actor service.Actor, id string) (string, error) {
	if err := requireAdmin(actor, "reset credentials"); err != nil {
		return "", err
	}

	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return "", err
	}

	temp, err := temporaryCredential()
	if err != nil {
		return "", err
	}
	hash, err := HashCredential(temp, s.hashCost)
	if err != nil {
		return "", err
	}

	account.CredentialHash = hash
	account.MustChangeCredential = true
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return "", err
	}
	return temp, nil
}

// ChangeCredential sets a new credential. An account changing its own
// credential must present the current one; admins may change any account's.
func (s *Service) ChangeCredential(ctx context.Context, actor service.Actor, id, current, next string) error {
	self := actor.AccountID == id
	if !self && !actor.IsAdmin() {
		return &common.ForbiddenError{AccountID: actor.AccountID, Operation: "change another account's credential"}
	}

	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	if self {
		ok, err := CheckCredential(account.CredentialHash, current)
		if err != nil {
			return err
		}
		if !ok {
			return common.NewValidationError("credential", "current credential does not match")
		}
	}

	hash, err := HashCredential(next, s.hashCost)
	if err != nil {
		return err
	}

	account.CredentialHash = hash
	account.MustChangeCredential = false
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}
