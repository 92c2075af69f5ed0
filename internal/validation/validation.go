package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gitlab.com/dirk.krummacker/address-book/internal/model"
)

// validate checks the `validate` struct tags of the model. It caches struct metadata and is safe
// for concurrent use.
var validate = newValidate()

// newValidate creates a validator that reports fields by their JSON names.
func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateContact checks a candidate contact before it is stored. The existing contacts are the
// uniqueness scope for the email address; the caller loads them, typically only those with the
// candidate's email. A contact in that scope with the same id as the candidate is the stored
// version of the candidate itself and is ignored. All rules are checked, the returned set holds
// every violation and is empty if the candidate is valid.
func ValidateContact(candidate model.Contact, existingContacts []model.Contact) ErrorSet {
	errs := ErrorSet{}
	checkRequired(candidate, errs)
	if candidate.Email != "" {
		for _, other := range existingContacts {
			if candidate.Id != 0 && other.Id == candidate.Id {
				continue
			}
			if other.Email == candidate.Email {
				errs.Add("email", DuplicateValue)
				break
			}
		}
	}
	return errs
}

// ValidatePhone checks a candidate phone before it is stored. The sibling phones are the phones of
// the owning contact. Phones that belong to another contact never conflict with the candidate,
// even if the caller passes them.
func ValidatePhone(candidate model.Phone, siblingPhones []model.Phone) ErrorSet {
	errs := ErrorSet{}
	checkRequired(candidate, errs)
	if candidate.Phone != "" {
		for _, sibling := range siblingPhones {
			if sibling.ContactId != candidate.ContactId {
				continue
			}
			if candidate.Id != 0 && sibling.Id == candidate.Id {
				continue
			}
			if sibling.Phone == candidate.Phone {
				errs.Add("phone", DuplicateValue)
				break
			}
		}
	}
	return errs
}

// checkRequired adds a MissingField violation for every empty field tagged as required.
func checkRequired(record any, errs ErrorSet) {
	var fieldErrors validator.ValidationErrors
	if errors.As(validate.Struct(record), &fieldErrors) {
		for _, fieldError := range fieldErrors {
			if fieldError.Tag() == "required" {
				errs.Add(fieldError.Field(), MissingField)
			}
		}
	}
}
