package marketplace

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HoldingStatus is the lifecycle of a purchased holding.
type HoldingStatus string

const (
	HoldingActive  HoldingStatus = "ACTIVE"
	HoldingRetired HoldingStatus = "RETIRED"
	HoldingResold  HoldingStatus = "RESOLD"
)

// CreditBatch is the credit allotment created exactly once when a
// project is approved. TotalIssued is immutable after creation and is
// the ceiling no sequence of trades or retirements may exceed.
type CreditBatch struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ProjectID   uuid.UUID       `db:"project_id" json:"project_id"`
	TotalIssued decimal.Decimal `db:"total_issued" json:"total_issued"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	IssuedAt    time.Time       `db:"issued_at" json:"issued_at"`
}

// Listing is a marketplace offer of a quantity of credits from a batch.
// QuantityListed is the immutable original quantity; QuantityAvailable
// only ever decreases. A listing at zero availability is closed, not
// deleted. SourcePurchaseID is set for resale (trade-offer) listings.
type Listing struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	BatchID           uuid.UUID       `db:"batch_id" json:"batch_id"`
	ProjectID         uuid.UUID       `db:"project_id" json:"project_id"`
	SellerID          string          `db:"seller_id" json:"seller_id"`
	SourcePurchaseID  *uuid.UUID      `db:"source_purchase_id" json:"source_purchase_id,omitempty"`
	QuantityListed    decimal.Decimal `db:"quantity_listed" json:"quantity_listed"`
	QuantityAvailable decimal.Decimal `db:"quantity_available" json:"quantity_available"`
	UnitPrice         decimal.Decimal `db:"unit_price" json:"unit_price"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// Closed reports whether the listing accepts no further purchases.
func (l *Listing) Closed() bool {
	return !l.QuantityAvailable.IsPositive()
}

// Resale reports whether the listing is a secondary trade offer.
func (l *Listing) Resale() bool {
	return l.SourcePurchaseID != nil
}

// Purchase is the immutable record of one completed buy plus the
// holding state it created. UnlistedQuantity tracks how much of the
// holding has not been re-listed as a trade offer; it enforces the
// no-double-listing rule.
type Purchase struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	ListingID        uuid.UUID       `db:"listing_id" json:"listing_id"`
	BatchID          uuid.UUID       `db:"batch_id" json:"batch_id"`
	ProjectID        uuid.UUID       `db:"project_id" json:"project_id"`
	BuyerID          string          `db:"buyer_id" json:"buyer_id"`
	Quantity         decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice        decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalCost        decimal.Decimal `db:"total_cost" json:"total_cost"`
	UnlistedQuantity decimal.Decimal `db:"unlisted_quantity" json:"unlisted_quantity"`
	Status           HoldingStatus   `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}
