package app

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	passwordLength   = 8
	passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// byte offsets of a v4 uuid that carry no version or variant bits
var passwordBytes = [passwordLength]int{0, 1, 2, 3, 4, 5, 7, 9}

// GeneratePassword returns a random classroom join token drawn from an
// alphabet without look-alike characters.
func GeneratePassword() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	out := make([]byte, passwordLength)
	for i, b := range passwordBytes {
		out[i] = passwordAlphabet[int(id[b])%len(passwordAlphabet)]
	}
	return string(out), nil
}
