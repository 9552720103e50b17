package validation

import "regexp"

var (
	// ASCII letters, Latin-1 letters (U+00C0-U+00FF without × and ÷) and hyphens.
	namePattern = regexp.MustCompile(`^[a-zA-Z\x{00C0}-\x{00D6}\x{00D8}-\x{00F6}\x{00F8}-\x{00FF}-]+$`)

	// local@domain.tld with no whitespace or '@' inside the parts.
	emailPattern = regexp.MustCompile(`^[^\s\p{Z}@]+@[^\s\p{Z}@]+\.[^\s\p{Z}@]+$`)

	postalCodePattern = regexp.MustCompile(`^[0-9]{5}$`)
)

// ValidateIdentity checks a first or last name.
func ValidateIdentity(v any) Outcome {
	name, out := requireString(v, CodeMissingName, "missing param name", "name must be a string")
	if !out.IsValid() {
		return out
	}
	if !namePattern.MatchString(name) {
		return Invalid(CodeInvalidFormat, "name must only contain letters, accents and hyphens")
	}
	return Valid()
}

// ValidateEmail checks the local@domain.tld shape of an address.
func ValidateEmail(v any) Outcome {
	email, out := requireString(v, CodeMissingEmail, "missing param email", "email must be a string")
	if !out.IsValid() {
		return out
	}
	if !emailPattern.MatchString(email) {
		return Invalid(CodeInvalidFormat, "email is invalid")
	}
	return Valid()
}

// ValidatePostalCode checks a French postal code: exactly five ASCII digits.
func ValidatePostalCode(v any) Outcome {
	code, out := requireString(v, CodeMissingCode, "missing param code", "code must be a string")
	if !out.IsValid() {
		return out
	}
	if !postalCodePattern.MatchString(code) {
		return Invalid(CodeInvalidFormat, "code must be 5 digits")
	}
	return Valid()
}

// ValidateCity applies the name character class to a city.
func ValidateCity(v any) Outcome {
	city, out := requireString(v, CodeMissingCity, "missing param city", "city must be a string")
	if !out.IsValid() {
		return out
	}
	if !namePattern.MatchString(city) {
		return Invalid(CodeInvalidFormat, "city must only contain letters, accents and hyphens")
	}
	return Valid()
}

func requireString(v any, missing Code, missingMsg, typeMsg string) (string, Outcome) {
	switch s := v.(type) {
	case nil:
		return "", Invalid(missing, missingMsg)
	case string:
		if s == "" {
			return "", Invalid(missing, missingMsg)
		}
		return s, Valid()
	default:
		return "", Invalid(CodeInvalidType, typeMsg)
	}
}
