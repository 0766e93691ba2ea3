package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityCustomer EntityType = "customer"
	EntityReseller EntityType = "reseller"
	EntitySupplier EntityType = "supplier"
	EntityOther    EntityType = "other"
)

// ExternalEntity is a counterparty managed directly in the ledger
// (suppliers and other businesses that have no user account).
type ExternalEntity struct {
	BaseModel
	Name    string     `gorm:"type:varchar(255);not null" json:"name"`
	Contact string     `gorm:"type:varchar(255)" json:"contact"`
	Type    EntityType `gorm:"type:varchar(20);not null" json:"type"`
}

func (ExternalEntity) TableName() string {
	return "external_entities"
}

// EntitySource tags where a LedgerEntity comes from. It is implemented only
// by InternalSource and ExternalSource.
type EntitySource interface {
	LinkedID() string
	isEntitySource()
}

// InternalSource is a read-only projection of a directory user.
type InternalSource struct {
	UserID   uuid.UUID
	RoleCode string
}

func (s InternalSource) LinkedID() string { return s.UserID.String() }
func (InternalSource) isEntitySource()    {}

// ExternalSource points at an ExternalEntity row.
type ExternalSource struct {
	ID uuid.UUID
}

func (s ExternalSource) LinkedID() string { return s.ID.String() }
func (ExternalSource) isEntitySource()    {}

// LedgerEntity is the uniform shape the registry hands out for both sources.
type LedgerEntity struct {
	ID      string
	Name    string
	Contact string
	Type    EntityType
	Source  EntitySource
}

// IsInternal reports whether the entity is derived from the user directory
func (e LedgerEntity) IsInternal() bool {
	_, ok := e.Source.(InternalSource)
	return ok
}

func (e LedgerEntity) MarshalJSON() ([]byte, error) {
	linked := ""
	if e.Source != nil {
		linked = e.Source.LinkedID()
	}
	return json.Marshal(struct {
		ID       string     `json:"id"`
		Name     string     `json:"name"`
		Contact  string     `json:"contact"`
		Type     EntityType `json:"type"`
		LinkedID string     `json:"linked_id"`
		Internal bool       `json:"internal"`
	}{e.ID, e.Name, e.Contact, e.Type, linked, e.IsInternal()})
}

// EntityFromUser projects a CUSTOMER or RESELLER user into the registry.
func EntityFromUser(u User) LedgerEntity {
	t := EntityCustomer
	if u.RoleCode() == RoleReseller {
		t = EntityReseller
	}
	contact := u.PhoneNumber
	if contact == "" {
		contact = u.Email
	}
	return LedgerEntity{
		ID:      u.ID.String(),
		Name:    u.FullName,
		Contact: contact,
		Type:    t,
		Source:  InternalSource{UserID: u.ID, RoleCode: u.RoleCode()},
	}
}

// ToLedgerEntity wraps the external row in the registry shape
func (e ExternalEntity) ToLedgerEntity() LedgerEntity {
	return LedgerEntity{
		ID:      e.ID.String(),
		Name:    e.Name,
		Contact: e.Contact,
		Type:    e.Type,
		Source:  ExternalSource{ID: e.ID},
	}
}
