// pkg/core/occupant.go
package core

// persistentIDBase is the platform's individual-account base. Persistent
// account IDs lie strictly above it; bots and transient connections below.
const persistentIDBase uint64 = 76561197960265728

// UnknownName replaces a missing display name in reports.
const UnknownName = "Unknown Name"

// Occupant is a driver or passenger.
type Occupant struct {
	ID          uint64  `json:"id" yaml:"id"`
	DisplayName *string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	IsNPC       bool    `json:"isNpc" yaml:"isNpc"`
}

// EntityID implements Entity so occupants can sit in a passenger zone.
func (o *Occupant) EntityID() uint64 {
	return o.ID
}

// Name returns the display name or UnknownName.
func (o *Occupant) Name() string {
	if o.DisplayName == nil {
		return UnknownName
	}
	return *o.DisplayName
}

// IsPersistentID reports whether the ID is a persistent platform account.
func (o *Occupant) IsPersistentID() bool {
	return o.ID > persistentIDBase
}

// IsPlayer holds for occupants that belong in reports.
func (o *Occupant) IsPlayer() bool {
	return o != nil && !o.IsNPC && o.IsPersistentID()
}
