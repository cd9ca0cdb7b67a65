package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by Compare when the password is wrong.
var ErrPasswordMismatch = errors.New("password mismatch")

// Hasher hashes passwords with bcrypt. The password is first keyed with a
// server-side pepper through HMAC-SHA256, so the bcrypt input is always 44
// bytes regardless of password or pepper length.
type Hasher struct {
	Cost   int
	Pepper string
}

// NewHasher returns a Hasher, falling back to bcrypt.DefaultCost for an out-of-range cost.
func NewHasher(cost int, pepper string) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{Cost: cost, Pepper: pepper}
}

// Hash returns the bcrypt hash of the peppered password.
func (h *Hasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(h.peppered(plain), h.Cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare checks plain against hash. It returns ErrPasswordMismatch for a
// wrong password and the bcrypt error for a malformed hash.
func (h *Hasher) Compare(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), h.peppered(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

func (h *Hasher) peppered(plain string) []byte {
	mac := hmac.New(sha256.New, []byte(h.Pepper))
	mac.Write([]byte(plain))
	out := make([]byte, base64.StdEncoding.EncodedLen(sha256.Size))
	base64.StdEncoding.Encode(out, mac.Sum(nil))
	return out
}
