package organization

import "github.com/austere-albatross/eventstore/valueobject"

// Name is an organization name
type Name struct {
	value string
}

// NewName validates and wraps an organization name
func NewName(name string) (Name, error) {
	if err := valueobject.NotBlank("organization name", name); err != nil {
		return Name{}, err
	}

	return Name{value: name}, nil
}

// Value returns the wrapped name
func (n Name) Value() string { return n.value }

// Equals reports whether both names are the same
func (n Name) Equals(other Name) bool { return n.value == other.value }

func (n Name) String() string { return n.value }
