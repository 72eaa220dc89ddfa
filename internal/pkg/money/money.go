// Package money models stable-coin amounts as unsigned integers scaled by 10^6.
// All arithmetic is integer-only.
package money

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Decimals is the number of fractional digits carried by an Amount.
const Decimals = 6

// Unit is one whole token (1.000000).
const Unit Amount = 1_000_000

var ErrInvalidAmount = errors.New("money: invalid amount")

// Amount is a token amount in the smallest unit (10^-6).
type Amount uint64

// Parse converts a decimal string such as "29.99" into an Amount.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > Decimals {
		return 0, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, Decimals)
	}
	frac += strings.Repeat("0", Decimals-len(frac))

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	f, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	hi, lo := bits.Mul64(w, uint64(Unit))
	if hi != 0 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
	}
	sum, carry := bits.Add64(lo, f, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
	}
	return Amount(sum), nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the shortest decimal form: 29990000 -> "29.99".
func (a Amount) String() string {
	whole := uint64(a) / uint64(Unit)
	frac := uint64(a) % uint64(Unit)
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	f := fmt.Sprintf("%06d", frac)
	return strconv.FormatUint(whole, 10) + "." + strings.TrimRight(f, "0")
}

// Add returns a+b and reports whether it overflowed.
func (a Amount) Add(b Amount) (Amount, bool) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	return Amount(sum), carry != 0
}

// Sub returns a-b and reports whether it would go negative.
func (a Amount) Sub(b Amount) (Amount, bool) {
	diff, borrow := bits.Sub64(uint64(a), uint64(b), 0)
	return Amount(diff), borrow != 0
}

// Prorate returns floor(price * used / total) with used clamped to [0, total],
// so the result never exceeds price. A zero total yields zero.
func Prorate(price Amount, used, total uint64) Amount {
	if total == 0 {
		return 0
	}
	if used > total {
		used = total
	}
	hi, lo := bits.Mul64(uint64(price), used)
	// used <= total keeps the quotient within 64 bits, so hi < total.
	q, _ := bits.Div64(hi, lo, total)
	return Amount(q)
}
