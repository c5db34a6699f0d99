package random

import (
	"crypto/rand"
	"math/big"
)

// ReceiptAlphabet omits characters that are easily confused when read aloud
// or printed on a receipt (0/O, 1/I/L).
const ReceiptAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// ReceiptCodeLength is the length of a human-readable receipt code
const ReceiptCodeLength = 8

// Random provides random number generation that can be mocked for testing
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int

	// String generates a random string of the given length from the given alphabet
	String(length int, alphabet string) string
}

// ReceiptCode draws a new receipt code from r
func ReceiptCode(r Random) string {
	return r.String(ReceiptCodeLength, ReceiptAlphabet)
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Intn returns a cryptographically random int in [0, n)
func (r *CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	result, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(result.Int64())
}

// String generates a random string of the given length from the given alphabet
func (r *CryptoRandom) String(length int, alphabet string) string {
	if length <= 0 || len(alphabet) == 0 {
		return ""
	}
	result := make([]byte, length)
	for i := range result {
		result[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(result)
}
