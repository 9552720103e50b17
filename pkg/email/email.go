// Package email holds the address helpers shared by the stores and the
// remote users API client.
package email

import (
	"strings"
	"unicode"
)

// Normalize trims and lowercases an address. Stores compare normalized
// addresses, so "Jean@Example.com" and "jean@example.com" collide.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// LocalPart returns the part before the first '@', or the whole input.
func LocalPart(address string) string {
	local, _, _ := strings.Cut(address, "@")
	return local
}

// DeriveNameFromEmail guesses a display name for remote users that carry
// only an address: "jean.dupont@example.com" gives ("Jean", "Dupont").
// A "+tag" sub-address is ignored. Middle parts are dropped; an address
// without a usable local part yields two empty strings.
func DeriveNameFromEmail(address string) (first, last string) {
	local, _, _ := strings.Cut(LocalPart(address), "+")
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return titleCase(parts[0]), ""
	default:
		return titleCase(parts[0]), titleCase(parts[len(parts)-1])
	}
}

// SplitFullName splits "Leanne Graham" into ("Leanne", "Graham"). Everything
// after the first word is the last name.
func SplitFullName(name string) (first, last string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

func titleCase(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
