package booking

import (
	"crypto/rand"
	"encoding/hex"
)

// newOwnerToken generates a random hexadecimal string of n*2 characters.
// Owner tokens prove which reservation attempt currently holds a seat lock;
// the underlying call to crypto/rand ensures they cannot be guessed or
// collide in practice.
func newOwnerToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
