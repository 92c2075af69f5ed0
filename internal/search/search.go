// Package search filters contacts in memory.
package search

import (
	"slices"
	"strings"

	"gitlab.com/dirk.krummacker/address-book/internal/model"
)

// ByLetter returns the contacts whose last name starts with the given letter (or prefix), sorted
// by last name in ascending order. Contacts with equal last names keep their relative order. The
// match is case-sensitive, and an empty letter matches every contact. The result is a new slice
// with its own phone lists, the input is not modified.
func ByLetter(allContacts []model.Contact, letter string) []model.Contact {
	matches := make([]model.Contact, 0, len(allContacts))
	for _, contact := range allContacts {
		if strings.HasPrefix(contact.LastName, letter) {
			contact.Phones = slices.Clone(contact.Phones)
			matches = append(matches, contact)
		}
	}
	slices.SortStableFunc(matches, func(a, b model.Contact) int {
		return strings.Compare(a.LastName, b.LastName)
	})
	return matches
}
