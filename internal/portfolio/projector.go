package portfolio

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/01phanto/EcoLedger/internal/ledger"
)

// ProjectBalances are the per-project running totals derived from the
// ledger.
type ProjectBalances struct {
	TotalIssued        decimal.Decimal `json:"total_issued"`
	TotalSold          decimal.Decimal `json:"total_sold"`
	TotalRetired       decimal.Decimal `json:"total_retired"`
	AvailableRemaining decimal.Decimal `json:"available_remaining"`
}

// HolderPortfolio are the per-buyer running totals derived from the
// ledger.
type HolderPortfolio struct {
	ActiveHoldings  decimal.Decimal `json:"active_holdings"`
	RetiredHoldings decimal.Decimal `json:"retired_holdings"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
}

// Projector folds ledger entries into balances. It is a pure function
// of the ledger: applying entries one at a time and rebuilding from a
// cold replay must produce identical state, which is the projector's
// core tested property.
type Projector struct {
	lastSequence uint64
	projects     map[uuid.UUID]*ProjectBalances
	holders      map[string]*HolderPortfolio
}

// NewProjector creates an empty projector positioned before sequence 1.
func NewProjector() *Projector {
	return &Projector{
		projects: make(map[uuid.UUID]*ProjectBalances),
		holders:  make(map[string]*HolderPortfolio),
	}
}

// Apply folds one entry into the state. Entries must arrive in strict
// sequence order.
func (p *Projector) Apply(entry ledger.Entry) error {
	if entry.Sequence != p.lastSequence+1 {
		return fmt.Errorf("projector expected sequence %d, got %d", p.lastSequence+1, entry.Sequence)
	}

	switch entry.Type {
	case ledger.EntryBatchIssued:
		var payload ledger.BatchIssuedPayload
		if err := json.Unmarshal(entry.Payload, &payload); err != nil {
			return fmt.Errorf("bad %s payload at sequence %d: %w", entry.Type, entry.Sequence, err)
		}
		balances := p.project(payload.ProjectID)
		balances.TotalIssued = balances.TotalIssued.Add(payload.TotalIssued)

	case ledger.EntryCreditsPurchased:
		var payload ledger.CreditsPurchasedPayload
		if err := json.Unmarshal(entry.Payload, &payload); err != nil {
			return fmt.Errorf("bad %s payload at sequence %d: %w", entry.Type, entry.Sequence, err)
		}
		// Resale purchases move holdings between buyers; only primary
		// sales count against the project's issued supply.
		if !payload.Resale {
			balances := p.project(payload.ProjectID)
			balances.TotalSold = balances.TotalSold.Add(payload.Quantity)
		}
		holder := p.holder(payload.BuyerID)
		holder.ActiveHoldings = holder.ActiveHoldings.Add(payload.Quantity)
		holder.TotalSpent = holder.TotalSpent.Add(payload.TotalCost)

	case ledger.EntryCreditsRetired:
		var payload ledger.CreditsRetiredPayload
		if err := json.Unmarshal(entry.Payload, &payload); err != nil {
			return fmt.Errorf("bad %s payload at sequence %d: %w", entry.Type, entry.Sequence, err)
		}
		balances := p.project(payload.ProjectID)
		balances.TotalRetired = balances.TotalRetired.Add(payload.Quantity)
		holder := p.holder(payload.HolderID)
		holder.ActiveHoldings = holder.ActiveHoldings.Sub(payload.Quantity)
		holder.RetiredHoldings = holder.RetiredHoldings.Add(payload.Quantity)

	case ledger.EntryTradeOfferPosted:
		var payload ledger.TradeOfferPostedPayload
		if err := json.Unmarshal(entry.Payload, &payload); err != nil {
			return fmt.Errorf("bad %s payload at sequence %d: %w", entry.Type, entry.Sequence, err)
		}
		// Offered quantity leaves the seller's active holdings until a
		// resale purchase hands it to the buyer.
		holder := p.holder(payload.SellerID)
		holder.ActiveHoldings = holder.ActiveHoldings.Sub(payload.Quantity)

	default:
		return fmt.Errorf("unknown ledger entry type %q at sequence %d", entry.Type, entry.Sequence)
	}

	p.lastSequence = entry.Sequence
	return nil
}

// Rebuild resets the projector and replays entries from scratch.
func (p *Projector) Rebuild(entries []ledger.Entry) error {
	p.lastSequence = 0
	p.projects = make(map[uuid.UUID]*ProjectBalances)
	p.holders = make(map[string]*HolderPortfolio)
	for _, entry := range entries {
		if err := p.Apply(entry); err != nil {
			return err
		}
	}
	return nil
}

// LastSequence returns the sequence number of the last applied entry.
func (p *Projector) LastSequence() uint64 {
	return p.lastSequence
}

// ProjectBalances returns a copy of a project's balances. Unknown
// projects report zeroes.
func (p *Projector) ProjectBalances(projectID uuid.UUID) ProjectBalances {
	balances, ok := p.projects[projectID]
	if !ok {
		return ProjectBalances{}
	}
	out := *balances
	out.AvailableRemaining = out.TotalIssued.Sub(out.TotalSold)
	return out
}

// Portfolio returns a copy of a holder's portfolio. Unknown holders
// report zeroes.
func (p *Projector) Portfolio(holderID string) HolderPortfolio {
	holder, ok := p.holders[holderID]
	if !ok {
		return HolderPortfolio{}
	}
	return *holder
}

// ProjectIDs returns every project the projector has seen.
func (p *Projector) ProjectIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(p.projects))
	for id := range p.projects {
		out = append(out, id)
	}
	return out
}

func (p *Projector) project(id uuid.UUID) *ProjectBalances {
	balances, ok := p.projects[id]
	if !ok {
		balances = &ProjectBalances{}
		p.projects[id] = balances
	}
	return balances
}

func (p *Projector) holder(id string) *HolderPortfolio {
	holder, ok := p.holders[id]
	if !ok {
		holder = &HolderPortfolio{}
		p.holders[id] = holder
	}
	return holder
}
