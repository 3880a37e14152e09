package service

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
)

// ValidateCatalogItem checks the fields every stored catalog item must carry.
func ValidateCatalogItem(item *model.CatalogItem) error {
	if item == nil {
		return common.NewValidationError("catalog item", "missing")
	}
	if strings.TrimSpace(item.ID) == "" {
		return common.NewValidationError("id", "missing")
	}
	if strings.TrimSpace(item.Name) == "" {
		return common.NewValidationError("name", "missing")
	}
	if item.UnitPrice.IsNegative() {
		return common.NewValidationError("unit_price", "must not be negative")
	}
	return nil
}

// ValidateAccount checks the fields every stored account must carry.
func ValidateAccount(account *model.Account) error {
	if account == nil {
		return common.NewValidationError("account", "missing")
	}
	if strings.TrimSpace(account.ID) == "" {
		return common.NewValidationError("id", "missing")
	}
	if strings.TrimSpace(account.DisplayName) == "" {
		return common.NewValidationError("display_name", "missing")
	}
	if !account.Class.Valid() {
		return common.NewValidationError("account_class", fmt.Sprintf("unknown class %q", account.Class))
	}
	if !account.Access.Valid() {
		return common.NewValidationError("access_class", fmt.Sprintf("unknown class %q", account.Access))
	}
	return nil
}

// ValidateRequest checks a request before it is first stored. AccountClass may
// be left empty; the store fills it from the account.
func ValidateRequest(req *model.QueueRequest) error {
	if req == nil {
		return common.NewValidationError("request", "missing")
	}
	switch {
	case strings.TrimSpace(req.ID) == "":
		return common.NewValidationError("id", "missing")
	case strings.TrimSpace(req.CatalogItemID) == "":
		return common.NewValidationError("catalog_item_id", "missing")
	case strings.TrimSpace(req.AccountID) == "":
		return common.NewValidationError("account_id", "missing")
	case req.Quantity <= 0:
		return common.NewValidationError("quantity", "must be positive")
	case req.Status != model.StatusPending:
		return common.NewValidationError("status", "new requests must be pending")
	case req.AccountClass != "" && !req.AccountClass.Valid():
		return common.NewValidationError("account_class", fmt.Sprintf("unknown class %q", req.AccountClass))
	case req.CreatedAt.IsZero():
		return common.NewValidationError("created_at", "missing")
	}
	return nil
}
