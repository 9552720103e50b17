package validation

import "time"

// Draft holds the raw value of each field. Absent keys are treated as missing.
type Draft map[Field]any

// DraftOf converts text inputs into a Draft.
func DraftOf(values map[Field]string) Draft {
	d := make(Draft, len(values))
	for f, v := range values {
		d[f] = v
	}
	return d
}

// ErrorMap holds the failing outcome of each rejected field. Passing fields
// have no entry.
type ErrorMap map[Field]Outcome

// Messages flattens the map to field name -> message for rendering.
func (m ErrorMap) Messages() map[string]string {
	out := make(map[string]string, len(m))
	for f, o := range m {
		out[string(f)] = o.Message()
	}
	return out
}

// Result is the aggregate verdict on a draft.
type Result struct {
	Errors ErrorMap
}

// Valid holds when no field was rejected.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

type rule struct {
	field Field
	check func(v any, now time.Time) Outcome
}

func ignoreNow(fn func(any) Outcome) func(any, time.Time) Outcome {
	return func(v any, _ time.Time) Outcome { return fn(v) }
}

var rules = []rule{
	{FirstName, ignoreNow(ValidateIdentity)},
	{LastName, ignoreNow(ValidateIdentity)},
	{Email, ignoreNow(ValidateEmail)},
	{BirthDate, ValidateBirthDate},
	{City, ignoreNow(ValidateCity)},
	{PostalCode, ignoreNow(ValidatePostalCode)},
}

// ValidateField runs the rule of a single field. Unknown fields pass.
func ValidateField(field Field, v any, now time.Time) Outcome {
	for _, r := range rules {
		if r.field == field {
			return r.check(v, now)
		}
	}
	return Valid()
}

// ValidateForm runs every rule over the draft. Each field is checked
// independently, so one failure never masks another.
func ValidateForm(d Draft, now time.Time) Result {
	errs := ErrorMap{}
	for _, r := range rules {
		if out := r.check(d[r.field], now); !out.IsValid() {
			errs[r.field] = out
		}
	}
	return Result{Errors: errs}
}
