package domain

import "context"

// RewriterPort is consumed by handlers
type RewriterPort interface {
	Rewrite(ctx context.Context, in ResolveInput) (Result, error)
	State() State
	Table() []Rule
}
