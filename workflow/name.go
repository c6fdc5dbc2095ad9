package workflow

import "github.com/austere-albatross/eventstore/valueobject"

// Name is a workflow name
type Name struct {
	value string
}

// NewName validates and wraps a workflow name
func NewName(name string) (Name, error) {
	if err := valueobject.NotBlank("workflow name", name); err != nil {
		return Name{}, err
	}

	return Name{value: name}, nil
}

func (n Name) Value() string          { return n.value }
func (n Name) Equals(other Name) bool { return n.value == other.value }
func (n Name) String() string         { return n.value }
