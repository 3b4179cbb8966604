package enrichment

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/joshsymonds/accesslens/internal/ciem"
	"github.com/joshsymonds/accesslens/internal/models"
	"github.com/joshsymonds/accesslens/internal/records"
	"github.com/joshsymonds/accesslens/pkg/logger"
)

// AccessPathAPI is the CIEM surface the extender needs: pre-computed access
// paths between one account and one resource.
type AccessPathAPI interface {
	ResourceAccessPathsForAccount(ctx context.Context, q ciem.AccessPathQuery) ([]*models.AccessPath, error)
}

// identityTypeUser is the only identity type the access path API traces.
const identityTypeUser = "User"

// Options tune one enrichment run.
type Options struct {
	// IncludeAccessPaths expands each record into one row per access path
	// between its account and resource, with direct entitlement columns.
	IncludeAccessPaths bool
	// Parallel expands records concurrently. Output order still matches
	// input order.
	Parallel bool
	// MaxConcurrent caps in-flight expansions when Parallel is set.
	// Zero means DefaultMaxConcurrent.
	MaxConcurrent int
}

// DefaultMaxConcurrent bounds parallel record expansion.
const DefaultMaxConcurrent = 10

// Extender enriches resource-access report records with identity context
// and, optionally, expanded access paths. Its caches persist across calls,
// so one Extender can serve a whole multi-report run.
type Extender struct {
	correlator *Correlator
	resolver   *Resolver
	paths      AccessPathAPI
	logger     logger.Logger
}

// NewExtender wires the enrichment pipeline together.
func NewExtender(correlator *Correlator, resolver *Resolver, paths AccessPathAPI, log logger.Logger) *Extender {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Extender{
		correlator: correlator,
		resolver:   resolver,
		paths:      paths,
		logger:     log,
	}
}

// Extend enriches every record: identity attributes first, then the record
// itself, then account attributes, so report values override identity ones
// and resolved account context overrides both. With access paths enabled
// each record expands into one row per path.
func (e *Extender) Extend(ctx context.Context, recs []models.Record, opts Options) ([]models.Record, error) {
	accountIDs := records.UniqueValues(recs, func(r models.Record) string {
		return r[models.ColumnAccountID]
	})
	e.logger.Info("Extending report records",
		"records", len(recs),
		"distinct_accounts", len(accountIDs),
	)
	e.correlator.FillCache(ctx, accountIDs)

	if !opts.IncludeAccessPaths {
		out := make([]models.Record, 0, len(recs))
		for _, rec := range recs {
			ci := e.correlator.Lookup(rec[models.ColumnAccountID])
			out = append(out, models.MergeRecords(ci.IdentityAttributes, rec, ci.AccountAttributes))
		}
		return out, nil
	}

	if opts.Parallel {
		return e.expandParallel(ctx, recs, opts)
	}

	out := make([]models.Record, 0, len(recs))
	for _, rec := range recs {
		expanded, err := e.expandRecord(ctx, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}

// expandParallel expands records concurrently into an indexed slice so the
// flattened output preserves input order.
func (e *Extender) expandParallel(ctx context.Context, recs []models.Record, opts Options) ([]models.Record, error) {
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}

	results := make([][]models.Record, len(recs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i, rec := range recs {
		group.Go(func() error {
			expanded, err := e.expandRecord(groupCtx, rec)
			if err != nil {
				return err
			}
			results[i] = expanded
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.Record, 0, len(recs))
	for _, expanded := range results {
		out = append(out, expanded...)
	}
	return out, nil
}

// expandRecord turns one report record into one row per access path. When
// paths cannot be fetched, or the account never resolved, a single row with
// the unknown path sentinel keeps the record visible in the output.
func (e *Extender) expandRecord(ctx context.Context, rec models.Record) ([]models.Record, error) {
	ci := e.correlator.Lookup(rec[models.ColumnAccountID])
	base := models.MergeRecords(ci.IdentityAttributes, rec, ci.AccountAttributes)

	paths := e.fetchPaths(ctx, rec, ci)
	if len(paths) == 0 {
		paths = []*models.AccessPath{models.NewUnknownAccessPath()}
	}

	accountInternalID := ci.AccountAttributes[models.ColumnAccountInternalID]
	sourceID := ci.AccountAttributes[models.ColumnAccountSourceInternalID]

	out := make([]models.Record, 0, len(paths))
	for _, path := range paths {
		if _, ok := path.EntitlementStep(); ok {
			resolved, err := e.resolver.Resolve(ctx, accountInternalID, sourceID, path)
			if err != nil {
				e.logger.Error("Unable to resolve direct entitlement",
					"account_id", rec[models.ColumnAccountID],
					"error", err,
				)
			} else {
				path.SetDirectEntitlement(resolved)
			}
		}
		out = append(out, models.MergeRecords(
			base,
			path.DirectEntitlementAttributes(),
			models.Record{models.ColumnAccessPath: path.String()},
		))
	}
	return out, nil
}

// fetchPaths queries the access path API for one record. Accounts that
// never resolved have no internal id the API could trace, so they skip the
// call entirely. Fetch failures are logged and degrade to no paths.
func (e *Extender) fetchPaths(ctx context.Context, rec models.Record, ci *models.CorrelatedIdentity) []*models.AccessPath {
	if ci.IsUnknown() {
		return nil
	}
	paths, err := e.paths.ResourceAccessPathsForAccount(ctx, ciem.AccessPathQuery{
		AccountNativeID:   rec[models.ColumnAccountID],
		AccountType:       identityTypeUser,
		AccountSourceType: rec[models.ColumnAccountSourceType],
		Service:           rec[models.ColumnService],
		ResourceType:      rec[models.ColumnResourceType],
		ResourceID:        rec[models.ColumnResourceID],
	})
	if err != nil {
		e.logger.Error("Unable to fetch access paths",
			"account_id", rec[models.ColumnAccountID],
			"resource_id", rec[models.ColumnResourceID],
			"error", err,
		)
		return nil
	}
	return paths
}
