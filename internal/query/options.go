package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
)

// SortField names a history column to sort by.
type SortField string

// Sortable history columns.
const (
	SortCompletedAt SortField = "completed_at"
	SortRequestedAt SortField = "requested_at"
	SortValue       SortField = "value"
	SortQuantity    SortField = "quantity"
	SortItem        SortField = "item"
	SortAccount     SortField = "account"
)

var sortFields = []SortField{SortCompletedAt, SortRequestedAt, SortValue, SortQuantity, SortItem, SortAccount}

// SortFields lists every accepted sort column.
func SortFields() []SortField {
	out := make([]SortField, len(sortFields))
	copy(out, sortFields)
	return out
}

// ParseSortField converts a column name; empty means completion time.
func ParseSortField(s string) (SortField, error) {
	if s == "" {
		return SortCompletedAt, nil
	}
	f := SortField(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range sortFields {
		if f == known {
			return f, nil
		}
	}
	return "", common.NewValidationError("sort", fmt.Sprintf("unknown field %q", s))
}

// HistoryOptions filters and orders history views. The zero value lists
// everything, most recently completed first.
type HistoryOptions struct {
	Since        *time.Time
	Until        *time.Time
	Search       string
	AccountClass model.AccountClass
	SortBy       SortField
	Ascending    bool
}

func (o HistoryOptions) validate() error {
	if o.AccountClass != "" && !o.AccountClass.Valid() {
		return common.NewValidationError("account_class", fmt.Sprintf("unknown class %q", o.AccountClass))
	}
	if o.SortBy != "" {
		if _, err := ParseSortField(string(o.SortBy)); err != nil {
			return err
		}
	}
	if o.Since != nil && o.Until != nil && o.Until.Before(*o.Since) {
		return common.NewValidationError("until", "before since")
	}
	return nil
}
