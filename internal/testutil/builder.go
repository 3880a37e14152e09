package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
)

// Epoch is the fixed instant fixtures and FakeClock start from.
var Epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// Builder collects catalog items and accounts to seed.
type Builder struct {
	items    []model.CatalogItem
	accounts []model.Account
}

// NewBuilder returns an empty fixture builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithItem adds a catalog item named after its id. price is a decimal string.
func (b *Builder) WithItem(id, price string) *Builder {
	b.items = append(b.items, model.CatalogItem{
		ID:        id,
		Name:      "Item " + id,
		UnitPrice: decimal.RequireFromString(price),
		CreatedAt: Epoch,
	})
	return b
}

// WithNamedItem adds a catalog item with an explicit display name.
func (b *Builder) WithNamedItem(id, name, price string) *Builder {
	b.WithItem(id, price)
	b.items[len(b.items)-1].Name = name
	return b
}

// WithAccount adds a user account named after its id.
func (b *Builder) WithAccount(id string, class model.AccountClass) *Builder {
	return b.withAccount(id, "Account "+id, class, model.AccessUser)
}

// WithNamedAccount adds a user account with an explicit display name.
func (b *Builder) WithNamedAccount(id, name string, class model.AccountClass) *Builder {
	return b.withAccount(id, name, class, model.AccessUser)
}

// WithAdmin adds an internal admin account.
func (b *Builder) WithAdmin(id string) *Builder {
	return b.withAccount(id, "Admin "+id, model.ClassInternal, model.AccessAdmin)
}

// WithStandardFixture adds a small catalog and one account of each kind.
func (b *Builder) WithStandardFixture() *Builder {
	return b.
		WithNamedItem("paracetamol", "Paracetamol 500mg", "0.10").
		WithNamedItem("ibuprofen", "Ibuprofen 200mg", "0.25").
		WithNamedItem("bandage", "Bandage roll", "3.50").
		WithAdmin("admin").
		WithNamedAccount("ward-a", "Ward A", model.ClassInternal).
		WithNamedAccount("clinic-b", "Clinic B", model.ClassExternal)
}

func (b *Builder) withAccount(id, name string, class model.AccountClass, access model.AccessClass) *Builder {
	b.accounts = append(b.accounts, model.Account{
		ID:          id,
		DisplayName: name,
		Class:       class,
		Access:      access,
		CreatedAt:   Epoch,
	})
	return b
}
