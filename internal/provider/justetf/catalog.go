package justetf

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// DefaultPageSize is the listing page size requested by FetchCatalog.
const DefaultPageSize = 100

// FetchCatalog pages through the listing until an empty page or maxPages,
// drops entries whose ISIN was already seen and sorts by issuer. pace runs
// between pages and may be nil.
func FetchCatalog(ctx context.Context, c *APIClient, maxPages int, pace func(context.Context) error) ([]ETF, error) {
	var all []ETF
	seen := map[string]struct{}{}
	for page := 1; page <= maxPages; page++ {
		if page > 1 && pace != nil {
			if err := pace(ctx); err != nil {
				return nil, err
			}
		}
		etfs, err := c.ListETFs(ctx, page, DefaultPageSize)
		if err != nil {
			if len(all) > 0 {
				// keep what was already downloaded
				break
			}
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(etfs) == 0 {
			break
		}
		for _, e := range etfs {
			if e.ISIN != "" {
				if _, dup := seen[e.ISIN]; dup {
					continue
				}
				seen[e.ISIN] = struct{}{}
			}
			all = append(all, e)
		}
	}
	slices.SortStableFunc(all, func(a, b ETF) int { return cmp.Compare(a.Issuer, b.Issuer) })
	return all, nil
}
