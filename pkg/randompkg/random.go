// Package randompkg provides functionality for generating random application common items.
package randompkg

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/go-petr/pet-ledger/pkg/currencypkg"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// Intn is a shortcut for generating a random integer between 0 and max using crypto/rand.
func Intn(max int) int64 {
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(err)
	}

	return nBig.Int64()
}

// Int64Between generates a random integer between min and max inclusive.
func Int64Between(min, max int64) int64 {
	return min + Intn(int(max-min+1))
}

func fromCharset(n int, charset string) string {
	var sb strings.Builder

	k := len(charset)

	for i := 0; i < n; i++ {
		c := charset[Intn(k)]

		_ = sb.WriteByte(c) // The returned err is always nil.
	}

	return sb.String()
}

// String generates a random string of length n.
func String(n int) string {
	return fromCharset(n, alphabet)
}

// Owner generates a random owner name.
func Owner() string {
	return String(6)
}

// MinorAmountBetween generates a random amount in minor units between min and max.
func MinorAmountBetween(min, max int64) int64 {
	return Int64Between(min, max)
}

// Currency generates a random supported currency code.
func Currency() string {
	currencies := currencypkg.SupportedCurrencies
	return currencies[Intn(len(currencies))]
}

// Reference generates a random transaction reference.
func Reference() string {
	return "ref-" + uuid.NewString()
}
