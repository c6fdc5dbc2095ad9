package organization

import (
	"context"
	"errors"
	"fmt"
)

// ErrDuplicateName is returned when an organization with the same name already exists
var ErrDuplicateName = errors.New("organization with this name already exists")

// NameReadModel is the projection of organization names built from
// published OrgCreated / OrgRegistered events. The core only queries it.
type NameReadModel interface {
	NameExists(ctx context.Context, name string) (bool, error)

	// AddName is called by the projection observing published events
	AddName(ctx context.Context, name string) error
}

// NewUniquenessService constructs the name uniqueness service
func NewUniquenessService(rm NameReadModel) *UniquenessService {
	return &UniquenessService{readModel: rm}
}

// UniquenessService checks organization names against the name read model.
// The check and the later append are not atomic: two concurrent
// registrations of the same name can both pass.
type UniquenessService struct {
	readModel NameReadModel
}

// EnsureNameIsUnique fails with ErrDuplicateName if the name is already taken
func (s *UniquenessService) EnsureNameIsUnique(ctx context.Context, name Name) error {
	exists, err := s.readModel.NameExists(ctx, name.Value())
	if err != nil {
		return fmt.Errorf("checking organization name: %w", err)
	}

	if exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name.Value())
	}

	return nil
}
