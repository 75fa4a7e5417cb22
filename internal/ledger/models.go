package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType identifies the kind of fact an entry records.
type EntryType string

const (
	EntryBatchIssued      EntryType = "BATCH_ISSUED"
	EntryCreditsPurchased EntryType = "CREDITS_PURCHASED"
	EntryCreditsRetired   EntryType = "CREDITS_RETIRED"
	EntryTradeOfferPosted EntryType = "TRADE_OFFER_POSTED"
)

// GenesisHash is the previous-hash value of the first entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one immutable record in the append-only ledger. Sequence
// numbers start at 1 and are gapless; PreviousHash links each entry to
// the content hash of the one before it.
type Entry struct {
	Sequence     uint64          `db:"sequence" json:"sequence"`
	Type         EntryType       `db:"entry_type" json:"type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	ContentHash  string          `db:"content_hash" json:"content_hash"`
	PreviousHash string          `db:"previous_hash" json:"previous_hash"`
	RecordedAt   time.Time       `db:"recorded_at" json:"recorded_at"`
}

// DecodePayload unmarshals the entry payload into dst.
func (e *Entry) DecodePayload(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

// BatchIssuedPayload records a credit batch issued to an approved project.
type BatchIssuedPayload struct {
	BatchID     uuid.UUID       `json:"batch_id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	ListingID   uuid.UUID       `json:"listing_id"`
	TotalIssued decimal.Decimal `json:"total_issued"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreditsPurchasedPayload records one settled purchase. Resale marks a
// buy against a trade-offer listing rather than a primary listing.
type CreditsPurchasedPayload struct {
	PurchaseID uuid.UUID       `json:"purchase_id"`
	ListingID  uuid.UUID       `json:"listing_id"`
	BatchID    uuid.UUID       `json:"batch_id"`
	ProjectID  uuid.UUID       `json:"project_id"`
	BuyerID    string          `json:"buyer_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	Resale     bool            `json:"resale"`
}

// CreditsRetiredPayload records a holding permanently removed from
// circulation.
type CreditsRetiredPayload struct {
	PurchaseID uuid.UUID       `json:"purchase_id"`
	BatchID    uuid.UUID       `json:"batch_id"`
	ProjectID  uuid.UUID       `json:"project_id"`
	HolderID   string          `json:"holder_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// TradeOfferPostedPayload records a secondary resale listing created
// from an existing holding.
type TradeOfferPostedPayload struct {
	ListingID  uuid.UUID       `json:"listing_id"`
	PurchaseID uuid.UUID       `json:"purchase_id"`
	BatchID    uuid.UUID       `json:"batch_id"`
	ProjectID  uuid.UUID       `json:"project_id"`
	SellerID   string          `json:"seller_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	AskPrice   decimal.Decimal `json:"ask_price"`
}
