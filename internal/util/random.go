package util

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const (
	orderIDPrefix = "o_"
	// orderIDStampWidth fits unix milliseconds in base 36 until the year 5188.
	orderIDStampWidth = 9
	orderIDSuffixLen  = 10
)

// RandomHex returns n pseudo-random lowercase hex digits. Not for secrets.
func RandomHex(n int) string {
	if n <= 0 {
		return ""
	}
	const digits = "0123456789abcdef"
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[rand.IntN(len(digits))]
	}
	return string(b)
}

// NewOrderID returns an order identifier whose lexical order follows creation
// time: "o_" + zero-padded base36 unix millis + "_" + random hex.
func NewOrderID(now time.Time) string {
	stamp := strconv.FormatInt(now.UnixMilli(), 36)
	if pad := orderIDStampWidth - len(stamp); pad > 0 {
		stamp = strings.Repeat("0", pad) + stamp
	}
	return orderIDPrefix + stamp + "_" + RandomHex(orderIDSuffixLen)
}

// GenerateOrderID returns an order identifier stamped with the current time.
func GenerateOrderID() string {
	return NewOrderID(time.Now())
}

// OrderIDTime recovers the creation time embedded by NewOrderID.
func OrderIDTime(id string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(id, orderIDPrefix)
	if !ok {
		return time.Time{}, false
	}
	stamp, _, ok := strings.Cut(rest, "_")
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(stamp, 36, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
