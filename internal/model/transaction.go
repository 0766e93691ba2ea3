package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of value flow seen from the business.
type TransactionType string

const (
	TxWeGave     TransactionType = "we_gave"
	TxWeReceived TransactionType = "we_received"
)

type ItemType string

const (
	ItemCash    ItemType = "cash"
	ItemProduct ItemType = "product"
)

// LedgerTransaction records one cash or product movement between the
// business and a counterparty.
type LedgerTransaction struct {
	BaseModel
	EntityID string          `gorm:"type:varchar(64);not null;index" json:"entity_id"`
	Type     TransactionType `gorm:"type:varchar(20);not null" json:"type"`
	ItemType ItemType        `gorm:"type:varchar(10);not null" json:"item_type"`
	Amount   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Details  string          `gorm:"type:text;not null" json:"details"`

	// Product-only fields. Either all set or all empty.
	ProductID     *uuid.UUID       `gorm:"type:uuid;index" json:"product_id,omitempty"`
	ProductName   string           `gorm:"type:varchar(255)" json:"product_name,omitempty"`
	Quantity      int              `gorm:"default:0" json:"quantity,omitempty"`
	PurchasePrice *decimal.Decimal `gorm:"type:numeric(14,4)" json:"purchase_price,omitempty"`
	SalePrice     *decimal.Decimal `gorm:"type:numeric(14,4)" json:"sale_price,omitempty"`
}

func (LedgerTransaction) TableName() string {
	return "ledger_transactions"
}

func (t *LedgerTransaction) IsProduct() bool {
	return t.ItemType == ItemProduct
}

// UnitPrice is the sale price for disbursements and the purchase price for
// acquisitions. Zero when the matching field is unset.
func (t *LedgerTransaction) UnitPrice() decimal.Decimal {
	p := t.PurchasePrice
	if t.Type == TxWeGave {
		p = t.SalePrice
	}
	if p == nil {
		return decimal.Zero
	}
	return *p
}

// SignedAmount is the transaction's contribution to the entity balance:
// positive when the business gave value, negative when it received value.
func (t *LedgerTransaction) SignedAmount() decimal.Decimal {
	if t.Type == TxWeGave {
		return t.Amount
	}
	return t.Amount.Neg()
}
