// Package password holds the configurable strength policy applied on
// registration and password change.
package password

import (
	"fmt"
	"strings"
	"unicode"

	"gear-market/internal/core/config"
)

// MaxBytes is the longest password bcrypt will hash.
const MaxBytes = 72

type Policy struct {
	MinLength      int
	MaxLength      int // in bytes, capped at MaxBytes
	RequireLetter  bool
	RequireDigit   bool
	RequireSymbol  bool
	RejectNumeric  bool
	RejectCommon   bool
	RejectUsername bool
}

func FromConfig(c config.Password) Policy {
	return Policy(c)
}

// Default is used when no configuration is supplied.
func Default() Policy {
	return Policy{
		MinLength:      8,
		MaxLength:      MaxBytes,
		RequireLetter:  true,
		RequireDigit:   true,
		RejectNumeric:  true,
		RejectCommon:   true,
		RejectUsername: true,
	}
}

var common = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "12345678": {}, "123456789": {},
	"1234567890": {}, "qwerty123": {}, "qwertyuiop": {}, "iloveyou": {}, "11111111": {},
	"abc12345": {}, "letmein1": {}, "welcome1": {}, "admin123": {}, "passw0rd": {},
	"football1": {}, "sunshine1": {}, "princess1": {}, "monkey123": {}, "dragon123": {},
}

// Check returns every rule the password breaks, in a stable order. A nil
// result means the password is acceptable.
func (p Policy) Check(pw, username string) []string {
	var out []string
	if p.MinLength > 0 && len([]rune(pw)) < p.MinLength {
		out = append(out, fmt.Sprintf("This password is too short. It must contain at least %d characters.", p.MinLength))
	}
	if limit := p.maxBytes(); len(pw) > limit {
		out = append(out, fmt.Sprintf("This password is too long. It must contain at most %d bytes.", limit))
	}

	var hasLetter, hasDigit, hasSymbol, allDigits = false, false, false, pw != ""
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
			allDigits = false
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
			allDigits = false
		}
	}
	if p.RejectNumeric && allDigits {
		out = append(out, "This password is entirely numeric.")
	}
	if p.RequireLetter && !hasLetter && !allDigits {
		out = append(out, "This password must contain at least one letter.")
	}
	if p.RequireDigit && !hasDigit {
		out = append(out, "This password must contain at least one digit.")
	}
	if p.RequireSymbol && !hasSymbol {
		out = append(out, "This password must contain at least one symbol.")
	}
	if p.RejectCommon {
		if _, ok := common[strings.ToLower(pw)]; ok {
			out = append(out, "This password is too common.")
		}
	}
	if p.RejectUsername && username != "" && len(username) >= 3 &&
		strings.Contains(strings.ToLower(pw), strings.ToLower(username)) {
		out = append(out, "The password is too similar to the username.")
	}
	return out
}

func (p Policy) maxBytes() int {
	if p.MaxLength <= 0 || p.MaxLength > MaxBytes {
		return MaxBytes
	}
	return p.MaxLength
}
