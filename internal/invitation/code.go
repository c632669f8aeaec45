package invitation

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	CodeLength   = 8
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DeepLinkPrefix is the scheme and path of a join link; only the code is validated
	DeepLinkPrefix = "app://join/"
)

var (
	ErrMalformedCode = errors.New("malformed invitation code")

	upper    = cases.Upper(language.Und)
	alphabet = big.NewInt(int64(len(codeAlphabet)))
)

// GenerateCode returns a random code from [A-Z0-9]
func GenerateCode() (string, error) {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabet)
		if err != nil {
			return "", err
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode upper-cases a user supplied code and checks its format
func NormalizeCode(code string) (string, error) {
	code = upper.String(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return "", ErrMalformedCode
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return "", ErrMalformedCode
		}
	}
	return code, nil
}

// ParseDeepLink extracts and normalizes the code of an app://join/{code} link
func ParseDeepLink(link string) (string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(link), DeepLinkPrefix)
	if !ok {
		return "", ErrMalformedCode
	}
	return NormalizeCode(strings.TrimSuffix(rest, "/"))
}

// DeepLink builds the join link for a code
func DeepLink(code string) string {
	return DeepLinkPrefix + code
}
