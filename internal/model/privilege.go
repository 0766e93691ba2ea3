package model

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "ledger:manage"
	Name string `gorm:"type:varchar(100)" json:"name"`
}

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// User management
	{Code: "user:view", Name: "View User"},
	{Code: "user:create", Name: "Create User"},
	{Code: "user:update", Name: "Update User"},
	{Code: "user:delete", Name: "Delete User"},
	// Product catalog
	{Code: "product:view", Name: "View Product"},
	{Code: "product:create", Name: "Create Product"},
	{Code: "product:update", Name: "Update Product"},
	// Ledger counterparties
	{Code: "entity:view", Name: "View Entity"},
	{Code: "entity:manage", Name: "Manage External Entity"},
	// Ledger transactions
	{Code: "ledger:view", Name: "View Ledger"},
	{Code: "ledger:manage", Name: "Manage Ledger Transaction"},
	// Dashboard
	{Code: "dashboard:view", Name: "View Dashboard"},
}

// AdminExcludedPrivileges are held back from the ADMIN role
var AdminExcludedPrivileges = map[string]bool{
	"user:create": true,
	"user:update": true,
	"user:delete": true,
}
