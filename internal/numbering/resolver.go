// Package numbering computes the next disposition sequence number.
//
// The number is always a hint: two clients resolving concurrently may be
// handed the same value, and the backend remains the only place uniqueness
// is enforced. The resolver's job is fidelity to server state with graceful
// degradation, not exclusivity.
package numbering

import (
	"context"
	"log/slog"

	"github.com/sinorat/sinorat/internal/backend"
	"github.com/sinorat/sinorat/internal/models"
)

// Source names the tier that produced a resolution.
type Source string

const (
	// SourceServer means both server hints agreed to a reconciled value.
	SourceServer Source = "server"
	// SourceScan means the value came from a client-side scan of all
	// dispositions the backend would list.
	SourceScan Source = "scan"
	// SourceLocal means the value came from the persisted local floor.
	SourceLocal Source = "local"
	// SourceManual is the explicitly-invoked escape hatch.
	SourceManual Source = "manual"
)

// Backend is the slice of the REST client the resolver needs.
type Backend interface {
	NextNumberHint(ctx context.Context) (int, error)
	ListDisposisi(ctx context.Context, p backend.ListParams) ([]models.Disposisi, error)
}

// FloorStore is the slice of the local cache the resolver needs.
type FloorStore interface {
	LastNumber() (int, error)
	SetLastNumber(n int) error
}

// Resolver implements the tiered resolution chain. Each tier's network calls
// are made exactly once per resolution; failures fall through, they are
// never retried.
type Resolver struct {
	backend Backend
	floor   FloorStore
	logger  *slog.Logger
}

// NewResolver creates a resolver over the given backend and local floor.
func NewResolver(b Backend, floor FloorStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{backend: b, floor: floor, logger: logger}
}

// Reconcile merges the two server hints into one authoritative value. The
// dedicated endpoint may lag behind records inserted through another path,
// so the result never collides with an already-persisted maximum.
func Reconcile(backendNumber, maxNumber int) int {
	if backendNumber > maxNumber {
		return backendNumber
	}
	return maxNumber + 1
}

// Next resolves the next disposition number through the fallback chain:
//
//  1. the dedicated next-number endpoint plus a limit-1 descending listing,
//     reconciled; both calls must succeed,
//  2. a full listing with the maximum computed client-side,
//  3. the persisted local floor plus one (read only, nothing is written).
//
// The returned Source tells the caller which tier answered.
func (r *Resolver) Next(ctx context.Context) (int, Source, error) {
	hint, hintErr := r.backend.NextNumberHint(ctx)
	maxNumber, maxErr := r.maxFromListing(ctx)
	if hintErr == nil && maxErr == nil {
		return Reconcile(hint, maxNumber), SourceServer, nil
	}
	r.logger.Warn("number resolution falling back to full scan",
		slog.Any("hint_error", hintErr),
		slog.Any("max_error", maxErr))

	if n, err := r.maxFromScan(ctx); err == nil {
		return n + 1, SourceScan, nil
	} else {
		r.logger.Warn("full scan failed, falling back to local floor",
			slog.String("error", err.Error()))
	}

	floor, err := r.floor.LastNumber()
	if err != nil {
		return 0, SourceLocal, err
	}
	return floor + 1, SourceLocal, nil
}

// ManualNext is the last-resort escape hatch: it reads and increments the
// local floor unconditionally, persisting the increment, and never touches
// the network. Distinct from the automatic chain, which only reads the floor.
func (r *Resolver) ManualNext() (int, error) {
	floor, err := r.floor.LastNumber()
	if err != nil {
		return 0, err
	}
	next := floor + 1
	if err := r.floor.SetLastNumber(next); err != nil {
		return 0, err
	}
	return next, nil
}

// maxFromListing asks for exactly one record sorted by sequence descending.
// An empty result is a legitimate maximum of 0, not a failure.
func (r *Resolver) maxFromListing(ctx context.Context) (int, error) {
	list, err := r.backend.ListDisposisi(ctx, backend.ListParams{
		Limit:     1,
		SortBy:    "noDispo",
		SortOrder: "desc",
	})
	if err != nil {
		return 0, err
	}
	if len(list) == 0 {
		return 0, nil
	}
	return list[0].NoDispo, nil
}

// maxFromScan lists everything and computes the maximum client-side.
func (r *Resolver) maxFromScan(ctx context.Context) (int, error) {
	list, err := r.backend.ListDisposisi(ctx, backend.ListParams{})
	if err != nil {
		return 0, err
	}
	maxNumber := 0
	for _, d := range list {
		if d.NoDispo > maxNumber {
			maxNumber = d.NoDispo
		}
	}
	return maxNumber, nil
}
