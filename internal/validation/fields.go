package validation

// Field names a registration form input. Values match the JSON keys of a
// registration record.
type Field string

const (
	FirstName  Field = "firstName"
	LastName   Field = "lastName"
	Email      Field = "email"
	BirthDate  Field = "birthDate"
	City       Field = "city"
	PostalCode Field = "postalCode"
)

// Fields lists every form field in display order.
var Fields = []Field{FirstName, LastName, Email, BirthDate, City, PostalCode}

var labels = map[Field]string{
	FirstName:  "First Name",
	LastName:   "Last Name",
	Email:      "Email",
	BirthDate:  "Birth Date",
	City:       "City",
	PostalCode: "Postal Code",
}

// ParseField maps a wire name to a Field.
func ParseField(name string) (Field, bool) {
	f := Field(name)
	_, ok := labels[f]
	return f, ok
}

func (f Field) Known() bool {
	_, ok := labels[f]
	return ok
}

// Label is the human-facing name of the input.
func (f Field) Label() string {
	if l, ok := labels[f]; ok {
		return l
	}
	return string(f)
}

func (f Field) String() string {
	return string(f)
}
