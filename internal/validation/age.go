package validation

import (
	"fmt"
	"time"
)

// MinimumAge is the youngest age allowed to register.
const MinimumAge = 18

// CalculateAge returns the number of whole years between birth and the
// calendar date of now. A birthday counts from its own day: someone born on
// 2000-06-15 is 17 on 2018-06-14 and 18 on 2018-06-15. A 29 February
// birthday is reached on 1 March in common years. Birth dates after now give
// a negative age.
func CalculateAge(birth Date, now time.Time) int {
	today := DateOf(now)
	age := today.Year - birth.Year
	if today.Month < birth.Month || (today.Month == birth.Month && today.Day < birth.Day) {
		age--
	}
	return age
}

// ValidateBirthDate checks that v is a date and that the person is at least
// MinimumAge at now. v may be a "YYYY-MM-DD" string, a Date or a time.Time.
func ValidateBirthDate(v any, now time.Time) Outcome {
	var birth Date
	switch b := v.(type) {
	case nil:
		return missingBirth()
	case string:
		if b == "" {
			return missingBirth()
		}
		parsed, err := ParseDate(b)
		if err != nil {
			return invalidDate()
		}
		birth = parsed
	case Date:
		if b.IsZero() {
			return missingBirth()
		}
		if !b.IsValid() {
			return invalidDate()
		}
		birth = b
	case *Date:
		if b == nil {
			return missingBirth()
		}
		return ValidateBirthDate(*b, now)
	case time.Time:
		if b.IsZero() {
			return missingBirth()
		}
		birth = DateOf(b)
	default:
		return Invalid(CodeInvalidBirthType, "birthDate must be a date")
	}

	if CalculateAge(birth, now) < MinimumAge {
		return Invalid(CodeMinor, fmt.Sprintf("Age must be at least %d years old.", MinimumAge))
	}
	return Valid()
}

func missingBirth() Outcome {
	return Invalid(CodeMissingBirth, "missing param birthDate")
}

func invalidDate() Outcome {
	return Invalid(CodeInvalidDate, "birthDate is an invalid date")
}
