package model

// Contact is the data structure for a person that we know. The first name, the last name and the
// email address are mandatory. A contact owns its phones: deleting the contact deletes them too.
type Contact struct {
	Id        int64   `json:"id"               db:"id"`
	FirstName string  `json:"firstname"        db:"firstname" validate:"required"`
	LastName  string  `json:"lastname"         db:"lastname"  validate:"required"`
	Email     string  `json:"email"            db:"email"     validate:"required"`
	Phones    []Phone `json:"phones,omitempty" db:"-"`
}

// Phone is a phone number of a contact. The phone type is a free-form label such as "home" or
// "mobile".
type Phone struct {
	Id        int64  `json:"id"         db:"id"`
	ContactId int64  `json:"contact_id" db:"contact_id"`
	PhoneType string `json:"phone_type" db:"phone_type"`
	Phone     string `json:"phone"      db:"phone"      validate:"required"`
}

// FullName returns the first name and the last name of the contact, separated by a single space.
func (c Contact) FullName() string {
	return FullName(c)
}

// FullName returns the first name and the last name of the contact, separated by a single space.
// Empty names are not treated specially.
func FullName(c Contact) string {
	return c.FirstName + " " + c.LastName
}

// ContactUpdate holds the values of a partial contact update. Fields that are nil keep their
// stored value.
type ContactUpdate struct {
	FirstName *string `json:"firstname,omitempty"`
	LastName  *string `json:"lastname,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// IsEmpty returns true if the update does not change any field.
func (u ContactUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil
}

// ApplyTo returns a copy of the contact with the non-nil values of the update.
func (u ContactUpdate) ApplyTo(c Contact) Contact {
	if u.FirstName != nil {
		c.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		c.LastName = *u.LastName
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	return c
}
