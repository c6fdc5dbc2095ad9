package readmodel

import (
	"context"
	"errors"

	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/aggregate"
	"github.com/austere-albatross/eventstore/organization"
)

// NewNameProjection constructs the projection maintaining rm
func NewNameProjection(rm organization.NameReadModel) *NameProjection {
	return &NameProjection{readModel: rm}
}

// NameProjection adds organization names to the read model as
// OrgCreated / OrgRegistered events are observed
type NameProjection struct {
	readModel organization.NameReadModel
}

var _ aggregate.Handler = (*NameProjection)(nil)

// Handle makes the projection a publisher subscriber.
// A name already present is skipped for OrgCreated, which does not go through
// the uniqueness check. For OrgRegistered it means two registrations raced past
// the check, so ErrDuplicateName is returned and reaches the publisher.
func (p *NameProjection) Handle(ctx context.Context, evt eventstore.Event) error {
	err := p.add(ctx, evt)

	if errors.Is(err, organization.ErrDuplicateName) && evt.Type == organization.EventTypeOrgCreated {
		return nil
	}

	return err
}

// Projection returns the projection for the projector or an ambar endpoint.
// Replays deliver the same events again so duplicates are skipped.
func (p *NameProjection) Projection(ctx context.Context) eventstore.Projection {
	return func(evt eventstore.StoredEvent) error {
		err := p.add(ctx, evt.Event)
		if errors.Is(err, organization.ErrDuplicateName) {
			return nil
		}

		return err
	}
}

func (p *NameProjection) add(ctx context.Context, evt eventstore.Event) error {
	name, ok := orgName(evt)
	if !ok {
		return nil
	}

	return p.readModel.AddName(ctx, name)
}

func orgName(evt eventstore.Event) (string, bool) {
	switch data := evt.Data.(type) {
	case organization.OrgCreated:
		return data.Name, true
	case organization.OrgRegistered:
		return data.Name, true
	}

	return "", false
}
