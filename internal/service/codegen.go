package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	transferCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	minTransferCodeLength   = 12
	verificationCodeDigits  = 6
	verificationCodeModulus = 1_000_000
)

// CodeGenerator produces an opaque transfer code of the given length.
type CodeGenerator func(length int) (string, error)

// GenerateTransferCode draws length characters uniformly from the
// alphanumeric alphabet using crypto/rand.
func GenerateTransferCode(length int) (string, error) {
	if length < minTransferCodeLength {
		length = minTransferCodeLength
	}
	alphabetSize := big.NewInt(int64(len(transferCodeAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate transfer code: %w", err)
		}
		out[i] = transferCodeAlphabet[n.Int64()]
	}
	return string(out), nil
}

// GenerateVerificationCode returns a uniformly random zero-padded 6-digit code.
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(verificationCodeModulus))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", verificationCodeDigits, n.Int64()), nil
}
