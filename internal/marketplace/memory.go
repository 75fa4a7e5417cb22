package marketplace

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/01phanto/EcoLedger/internal/apperrors"
)

// memoryRepository backs the explicit "memory" storage driver and the
// test suites. All quantity mutations happen under the write lock, so
// DecrementListing is check-and-decrement atomic.
type memoryRepository struct {
	mu        sync.RWMutex
	batches   map[uuid.UUID]*CreditBatch
	byProject map[uuid.UUID]uuid.UUID
	listings  map[uuid.UUID]*Listing
	purchases map[uuid.UUID]*Purchase
}

// NewMemoryRepository creates an empty in-memory marketplace repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		batches:   make(map[uuid.UUID]*CreditBatch),
		byProject: make(map[uuid.UUID]uuid.UUID),
		listings:  make(map[uuid.UUID]*Listing),
		purchases: make(map[uuid.UUID]*Purchase),
	}
}

func (r *memoryRepository) CreateBatch(ctx context.Context, batch *CreditBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byProject[batch.ProjectID]; exists {
		return apperrors.Conflict(apperrors.ErrAlreadyIssued, "project %s", batch.ProjectID)
	}
	cp := *batch
	r.batches[batch.ID] = &cp
	r.byProject[batch.ProjectID] = batch.ID
	return nil
}

func (r *memoryRepository) GetBatch(ctx context.Context, id uuid.UUID) (*CreditBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	batch, ok := r.batches[id]
	if !ok {
		return nil, apperrors.NotFound("credit batch", id)
	}
	cp := *batch
	return &cp, nil
}

func (r *memoryRepository) GetBatchByProject(ctx context.Context, projectID uuid.UUID) (*CreditBatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byProject[projectID]
	if !ok {
		return nil, apperrors.NotFound("credit batch for project", projectID)
	}
	cp := *r.batches[id]
	return &cp, nil
}

func (r *memoryRepository) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[id]
	if !ok {
		return apperrors.NotFound("credit batch", id)
	}
	delete(r.byProject, batch.ProjectID)
	delete(r.batches, id)
	return nil
}

func (r *memoryRepository) CreateListing(ctx context.Context, listing *Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *listing
	r.listings[listing.ID] = &cp
	return nil
}

func (r *memoryRepository) GetListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.listings[id]
	if !ok {
		return nil, apperrors.NotFound("listing", id)
	}
	cp := *listing
	return &cp, nil
}

func (r *memoryRepository) ListListings(ctx context.Context, onlyOpen bool) ([]*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Listing, 0, len(r.listings))
	for _, listing := range r.listings {
		if onlyOpen && listing.Closed() {
			continue
		}
		cp := *listing
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) DecrementListing(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.listings[id]
	if !ok {
		return apperrors.NotFound("listing", id)
	}
	if listing.QuantityAvailable.LessThan(quantity) {
		return apperrors.Conflict(apperrors.ErrInsufficientSupply,
			"listing %s has %s available, requested %s", id, listing.QuantityAvailable, quantity)
	}
	listing.QuantityAvailable = listing.QuantityAvailable.Sub(quantity)
	return nil
}

func (r *memoryRepository) RestoreListing(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.listings[id]
	if !ok {
		return apperrors.NotFound("listing", id)
	}
	listing.QuantityAvailable = listing.QuantityAvailable.Add(quantity)
	return nil
}

func (r *memoryRepository) DeleteListing(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[id]; !ok {
		return apperrors.NotFound("listing", id)
	}
	delete(r.listings, id)
	return nil
}

func (r *memoryRepository) SumPrimaryListed(ctx context.Context, batchID uuid.UUID) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sum := decimal.Zero
	for _, listing := range r.listings {
		if listing.BatchID == batchID && !listing.Resale() {
			sum = sum.Add(listing.QuantityListed)
		}
	}
	return sum, nil
}

func (r *memoryRepository) CreatePurchase(ctx context.Context, purchase *Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *purchase
	r.purchases[purchase.ID] = &cp
	return nil
}

func (r *memoryRepository) GetPurchase(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	purchase, ok := r.purchases[id]
	if !ok {
		return nil, apperrors.NotFound("purchase", id)
	}
	cp := *purchase
	return &cp, nil
}

func (r *memoryRepository) UpdatePurchase(ctx context.Context, purchase *Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.purchases[purchase.ID]; !ok {
		return apperrors.NotFound("purchase", purchase.ID)
	}
	purchase.UpdatedAt = time.Now().UTC()
	cp := *purchase
	r.purchases[purchase.ID] = &cp
	return nil
}

func (r *memoryRepository) DeletePurchase(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.purchases[id]; !ok {
		return apperrors.NotFound("purchase", id)
	}
	delete(r.purchases, id)
	return nil
}

func (r *memoryRepository) ListPurchasesByBuyer(ctx context.Context, buyerID string) ([]*Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Purchase
	for _, purchase := range r.purchases {
		if purchase.BuyerID == buyerID {
			cp := *purchase
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepository) ListPurchasesByListing(ctx context.Context, listingID uuid.UUID) ([]*Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Purchase
	for _, purchase := range r.purchases {
		if purchase.ListingID == listingID {
			cp := *purchase
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
