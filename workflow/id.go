package workflow

import (
	"github.com/google/uuid"

	"github.com/austere-albatross/eventstore/valueobject"
)

// ID identifies a workflow (and its event stream)
type ID struct {
	value string
}

// NewID generates a new workflow ID
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return ID{value: uuid.NewString()}
	}

	return ID{value: id.String()}
}

// ParseID validates and wraps an existing workflow id
func ParseID(id string) (ID, error) {
	if err := valueobject.NotBlank("workflow id", id); err != nil {
		return ID{}, err
	}

	return ID{value: id}, nil
}

func (id ID) Value() string        { return id.value }
func (id ID) Equals(other ID) bool { return id.value == other.value }
func (id ID) String() string       { return id.value }
