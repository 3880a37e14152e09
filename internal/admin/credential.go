package admin

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
)

// MinCredentialLength is the shortest credential accepted.
const MinCredentialLength = 8

const tempCredentialBytes = 10

var tempEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// HashCredential returns the bcrypt hash of credential.
func HashCredential(credential string, cost int) (string, error) {
	if len(credential) < MinCredentialLength {
		return "", common.NewValidationError("credential", fmt.Sprintf("must be at least %d characters", MinCredentialLength))
	}
	// bcrypt ignores everything past 72 bytes.
	if len(credential) > 72 {
		return "", common.NewValidationError("credential", "must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash credential: %w", err)
	}
	return string(hash), nil
}

// CheckCredential reports whether credential matches hash.
func CheckCredential(hash, credential string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("failed to compare credential: %w", err)
	}
}

func temporaryCredential() (string, error) {
	buf := make([]byte, tempCredentialBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate credential: %w", err)
	}
	return strings.ToLower(tempEncoding.EncodeToString(buf)), nil
}
