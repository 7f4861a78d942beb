package container

import (
	"slices"

	"recycle/internal/reset"
)

// GraphOrder resets instances in the container's dependency order: values
// from providers earlier in TopoOrder come first. Instances the container did
// not build follow in registration order, as do several values from the same
// transient provider.
func GraphOrder(c *Container) reset.Orderer {
	return reset.OrderFunc(func(r *reset.Registry) []reset.Handle {
		handles := r.Handles()
		rank := c.typeRank()
		if len(rank) == 0 {
			return handles
		}
		slices.SortStableFunc(handles, func(a, b reset.Handle) int {
			return rankOr(rank, a.Type()) - rankOr(rank, b.Type())
		})
		return handles
	})
}

// ProvideGraphOrder registers GraphOrder as the container's reset.Orderer,
// which the engine looks up on its first cycle
func ProvideGraphOrder(c *Container) error {
	return Instance[reset.Orderer](c, GraphOrder(c))
}
