package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogItem is a priced item available for request.
type CatalogItem struct {
	CreatedAt   time.Time
	UnitPrice   decimal.Decimal
	ID          string
	Name        string
	Description string
	ImageRef    string
}

// PriceFor returns the value of quantity units at the current unit price.
func (c *CatalogItem) PriceFor(quantity int) decimal.Decimal {
	return ComputeValue(c.UnitPrice, quantity)
}
