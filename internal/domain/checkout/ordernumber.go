package checkout

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

const (
	orderNumberPrefix    = "ORD-"
	orderNumberAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	orderNumberSuffixLen = 7
)

var alphabetSize = big.NewInt(int64(len(orderNumberAlphabet)))

// NewOrderNumber returns a human-readable order number of the form
// ORD-<unix millis>-<7 uppercase base36 characters>.
func NewOrderNumber(now time.Time) (string, error) {
	var b strings.Builder
	b.Grow(len(orderNumberPrefix) + 14 + orderNumberSuffixLen)
	b.WriteString(orderNumberPrefix)
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('-')

	for range orderNumberSuffixLen {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", errors.Wrap(err, "read random")
		}
		b.WriteByte(orderNumberAlphabet[n.Int64()])
	}
	return b.String(), nil
}
