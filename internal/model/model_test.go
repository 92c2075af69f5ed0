package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFullName checks that first and last name are joined by a single space.
func TestFullName(t *testing.T) {
	contact := Contact{FirstName: "John", LastName: "Doe", Email: "tester@example.com"}
	assert.Equal(t, "John Doe", contact.FullName())
	assert.Equal(t, "John Doe", FullName(contact))
}

// TestFullNameOfEmptyNames expects the names to be concatenated even if they are empty.
func TestFullNameOfEmptyNames(t *testing.T) {
	assert.Equal(t, " ", Contact{}.FullName())
	assert.Equal(t, "John ", Contact{FirstName: "John"}.FullName())
	assert.Equal(t, " Doe", Contact{LastName: "Doe"}.FullName())
	assert.Equal(t, " John  Doe ", Contact{FirstName: " John", LastName: " Doe "}.FullName())
}

// TestContactUpdate checks that only the specified values are changed.
func TestContactUpdate(t *testing.T) {
	stored := Contact{Id: 4, FirstName: "Erika", LastName: "Mustermann", Email: "erika@example.com"}
	assert.True(t, ContactUpdate{}.IsEmpty())
	assert.Equal(t, stored, ContactUpdate{}.ApplyTo(stored))

	lastName := "Musterfrau"
	update := ContactUpdate{LastName: &lastName}
	assert.False(t, update.IsEmpty())
	updated := update.ApplyTo(stored)
	assert.Equal(t, "Musterfrau", updated.LastName)
	assert.Equal(t, "Erika", updated.FirstName)
	assert.Equal(t, "Mustermann", stored.LastName)
}
