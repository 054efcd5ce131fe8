package service

import (
	"math/rand/v2"
)

const (
	txCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	txCodeLength   = 20
)

// generateTransactionCode returns the opaque token attached to every history
// record.
func generateTransactionCode() string {
	code := make([]byte, txCodeLength)
	for i := range code {
		code[i] = txCodeAlphabet[rand.IntN(len(txCodeAlphabet))]
	}
	return string(code)
}
