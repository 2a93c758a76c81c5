package users

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid account token")

// Account tokens are "{userID}.{hex hmac}". They carry no expiry: the token
// identifies the account for low-stakes operations (preference updates,
// unsubscribe links) and a leaked one is revoked by rotating the key.

func sign(secret, userID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

// IssueToken returns the account token for a user id.
func IssueToken(secret, userID string) string {
	return userID + "." + sign(secret, userID)
}

// ValidateToken verifies a token and returns the user id it names.
func ValidateToken(secret, token string) (string, error) {
	userID, sig, ok := strings.Cut(token, ".")
	if !ok || userID == "" {
		return "", ErrInvalidToken
	}

	expected, err := hex.DecodeString(sign(secret, userID))
	if err != nil {
		return "", ErrInvalidToken
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidToken
	}
	if !hmac.Equal(expected, got) {
		return "", ErrInvalidToken
	}
	return userID, nil
}
