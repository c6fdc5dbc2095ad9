package organization

const (
	// EventTypeOrgCreated is the type of the event starting an organization stream
	EventTypeOrgCreated = "OrgCreated"

	// EventTypeOrgRegistered is the type of the event starting an organization
	// stream whose name was checked for uniqueness
	EventTypeOrgRegistered = "OrgRegistered"
)

// OrgCreated is the payload of an OrgCreated event
type OrgCreated struct {
	Name string `json:"name"`
}

// OrgRegistered is the payload of an OrgRegistered event
type OrgRegistered struct {
	Name string `json:"name"`
}

// Payloads lists every payload type of this package, for encoder registration
func Payloads() []any {
	return []any{OrgCreated{}, OrgRegistered{}}
}
