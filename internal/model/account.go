package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownClass is returned when a string does not name an account or access class.
var ErrUnknownClass = errors.New("unknown class")

// AccountClass partitions the queue for routing and reporting.
type AccountClass string

const (
	// ClassInternal marks accounts belonging to the organization.
	ClassInternal AccountClass = "internal"
	// ClassExternal marks accounts outside the organization.
	ClassExternal AccountClass = "external"
)

// AccessClass gates administrative operations.
type AccessClass string

const (
	// AccessAdmin may manage the catalog, accounts and the whole queue.
	AccessAdmin AccessClass = "admin"
	// AccessUser may only file and follow its own requests.
	AccessUser AccessClass = "user"
)

// ParseAccountClass converts a string into an AccountClass.
func ParseAccountClass(s string) (AccountClass, error) {
	c := AccountClass(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: account class %q", ErrUnknownClass, s)
	}
	return c, nil
}

// Valid reports whether c is a defined account class.
func (c AccountClass) Valid() bool {
	return c == ClassInternal || c == ClassExternal
}

// ParseAccessClass converts a string into an AccessClass.
func ParseAccessClass(s string) (AccessClass, error) {
	a := AccessClass(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: access class %q", ErrUnknownClass, s)
	}
	return a, nil
}

// Valid reports whether a is a defined access class.
func (a AccessClass) Valid() bool {
	return a == AccessAdmin || a == AccessUser
}

// Account is a profile that files requests.
type Account struct {
	CreatedAt            time.Time
	ID                   string
	DisplayName          string
	CredentialHash       string // opaque to the core
	Class                AccountClass
	Access               AccessClass
	MustChangeCredential bool
}

// IsAdmin reports whether the account may perform administrative operations.
func (a *Account) IsAdmin() bool {
	return a != nil && a.Access == AccessAdmin
}
