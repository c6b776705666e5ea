package models

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Principal is a user account. CreatedBy is nil for self-registered
// accounts and carries the creator's id for provisioned ones.
type Principal struct {
	ID           string
	Email        string
	PasswordHash []byte
	DisplayName  string
	Role         Role
	Status       Status
	CreatedBy    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Relation names the two concrete ownership edge kinds. Edges live in
// dedicated mapping tables so they can be queried and deleted
// independently of the principal rows.
type Relation string

const (
	RelationAdminTutor   Relation = "admin_tutor"
	RelationTutorStudent Relation = "tutor_student"
)

// RelationFor returns the edge kind used when provisioning a subordinate
// of the given role.
func RelationFor(subordinate Role) (Relation, bool) {
	switch subordinate {
	case RoleTutor:
		return RelationAdminTutor, true
	case RoleStudent:
		return RelationTutorStudent, true
	default:
		return "", false
	}
}

// OwnershipEdge is a directed creator → created relationship.
type OwnershipEdge struct {
	Relation  Relation
	OwnerID   string
	OwnedID   string
	CreatedAt time.Time
}
