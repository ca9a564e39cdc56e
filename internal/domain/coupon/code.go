package coupon

import (
	"crypto/rand"
	"io"
	"math/big"
	"strings"

	"github.com/go-faster/errors"
)

// RewardPrefix starts every generated reward coupon code.
const RewardPrefix = "GIFT"

const (
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 6
)

// GenerateCode returns RewardPrefix followed by six random base-36
// characters, uppercased.
func GenerateCode(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	var b strings.Builder
	b.Grow(len(RewardPrefix) + codeLength)
	b.WriteString(RewardPrefix)

	base := big.NewInt(int64(len(codeAlphabet)))
	for range codeLength {
		n, err := rand.Int(r, base)
		if err != nil {
			return "", errors.Wrap(err, "read random")
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode trims and uppercases a user supplied coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
