// Package organization implements the organization aggregate, its value
// objects and the create / register command handlers.
package organization

import (
	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/aggregate"
)

// Create creates a new organization raising OrgCreated
func Create(id ID, name Name) (*Organization, error) {
	return newOrganization(id, EventTypeOrgCreated, OrgCreated{Name: name.Value()})
}

// Register creates a new organization raising OrgRegistered. The name is
// expected to have been checked with UniquenessService beforehand.
func Register(id ID, name Name) (*Organization, error) {
	return newOrganization(id, EventTypeOrgRegistered, OrgRegistered{Name: name.Value()})
}

func newOrganization(id ID, eventType string, payload any) (*Organization, error) {
	var org Organization

	if err := org.Rehydrate(&org); err != nil {
		return nil, err
	}

	if err := org.Raise(id.Value(), eventType, payload); err != nil {
		return nil, err
	}

	return &org, nil
}

// Rehydrated reconstructs an organization from its history
func Rehydrated(events ...eventstore.Event) (*Organization, error) {
	var org Organization

	if err := org.Rehydrate(&org, events...); err != nil {
		return nil, err
	}

	return &org, nil
}

// Organization represents an organization aggregate
type Organization struct {
	aggregate.Root

	id   ID
	name Name
}

// ID returns the organization id
func (o *Organization) ID() ID { return o.id }

// Name returns the organization name
func (o *Organization) Name() Name { return o.name }

// OnOrgCreated handler
func (o *Organization) OnOrgCreated(evt OrgCreated) {
	o.id = ID{value: o.StreamID()}
	o.name = Name{value: evt.Name}
}

// OnOrgRegistered handler
func (o *Organization) OnOrgRegistered(evt OrgRegistered) {
	o.id = ID{value: o.StreamID()}
	o.name = Name{value: evt.Name}
}
