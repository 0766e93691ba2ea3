package model

// Role represents user roles in the system
type Role struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Code        string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name        string      `gorm:"type:varchar(100)" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Privileges  []Privilege `gorm:"many2many:role_privileges;" json:"privileges,omitempty"`
}

// Role codes as constants
const (
	RoleMasterAdmin = "MASTER_ADMIN"
	RoleAdmin       = "ADMIN"
	RoleCustomer    = "CUSTOMER"
	RoleReseller    = "RESELLER"
)

// LedgerRoleCodes are the directory roles projected into the entity registry
var LedgerRoleCodes = []string{RoleCustomer, RoleReseller}

// DefaultRoles defines the default roles in the system
var DefaultRoles = []Role{
	{
		Code:        RoleMasterAdmin,
		Name:        "Master Administrator",
		Description: "Full system access with all privileges",
	},
	{
		Code:        RoleAdmin,
		Name:        "Administrator",
		Description: "Day-to-day ledger and inventory operations",
	},
	{
		Code:        RoleCustomer,
		Name:        "Customer",
		Description: "Storefront customer, tracked as a ledger counterparty",
	},
	{
		Code:        RoleReseller,
		Name:        "Reseller",
		Description: "Reseller account, tracked as a ledger counterparty",
	},
}
