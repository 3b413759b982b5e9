package rooms

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Alphabet excludes ambiguous characters: 0, O, 1, I, L
const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 6

func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}

// NormalizeCode trims and upper-cases a code typed by a player.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
