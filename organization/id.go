package organization

import (
	"github.com/google/uuid"

	"github.com/austere-albatross/eventstore/valueobject"
)

// ID identifies an organization (and its event stream)
type ID struct {
	value string
}

// NewID generates a new organization ID
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return ID{value: uuid.NewString()}
	}

	return ID{value: id.String()}
}

// ParseID validates and wraps an existing organization id
func ParseID(id string) (ID, error) {
	if err := valueobject.NotBlank("organization id", id); err != nil {
		return ID{}, err
	}

	return ID{value: id}, nil
}

// Value returns the wrapped id
func (id ID) Value() string { return id.value }

// Equals reports whether both ids are the same
func (id ID) Equals(other ID) bool { return id.value == other.value }

// String implements fmt.Stringer
func (id ID) String() string { return id.value }
