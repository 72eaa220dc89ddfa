// Package account handles the 20-byte hex account identities used as
// subscription owners, plan creators and ledger holders.
package account

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

var ErrInvalidAddress = errors.New("invalid account address")

// Address is an account identity in EIP-55 checksum form. The zero value
// means "no account" and is used for retired subscription owners.
type Address string

// Parse validates s and returns its checksummed form. All-lower and all-upper
// inputs are accepted as-is; mixed case must carry a valid checksum.
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	body := s[2:]
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	sum := checksum(strings.ToLower(body))
	lower, upper := strings.ToLower(body), strings.ToUpper(body)
	if body != lower && body != upper && body != sum[2:] {
		return "", fmt.Errorf("%w: bad checksum %q", ErrInvalidAddress, s)
	}
	return Address(sum), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ParseList parses a comma separated list of addresses, skipping blanks.
func ParseList(items []string) ([]Address, error) {
	out := make([]Address, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		a, err := Parse(item)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == "" }

// Equal compares two addresses case-insensitively.
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(string(a), string(b))
}

// checksum applies EIP-55 mixed-case encoding to a lower-case hex body.
func checksum(lowerHex string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lowerHex))
	digest := hex.EncodeToString(h.Sum(nil))

	out := []byte(lowerHex)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			out[i] = c - 32
		}
	}
	return "0x" + string(out)
}

// Predicate answers a yes/no capability question about an account.
type Predicate func(Address) bool

// AnyOf returns a Predicate matching any of the given accounts.
func AnyOf(accounts ...Address) Predicate {
	set := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		set[strings.ToLower(string(a))] = struct{}{}
	}
	return func(a Address) bool {
		_, ok := set[strings.ToLower(string(a))]
		return ok
	}
}
