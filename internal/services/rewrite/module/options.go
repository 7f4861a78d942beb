package module

import (
	"strings"

	"recycle/internal/platform/config"
	perr "recycle/internal/platform/errors"
	"recycle/internal/services/rewrite/domain"
)

// Options holds configuration settings for the rewrite module
type Options struct {
	Table      []domain.Rule
	MaxHops    int
	TrailLimit int
}

var defaultTable = []string{
	"/old-home=/",
	"/catalog/shoes=/shoes",
	"/shoes=/footwear",
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) (Options, error) {
	rc := cfg.Prefix("REWRITE_")
	table, err := ParseTable(rc.MayCSV("TABLE", defaultTable))
	if err != nil {
		return Options{}, err
	}
	return Options{
		Table:      table,
		MaxHops:    rc.MayPositive("MAX_HOPS", 8),
		TrailLimit: rc.MayPositive("TRAIL_LIMIT", 32),
	}, nil
}

// ParseTable reads "from=to" pairs
func ParseTable(pairs []string) ([]domain.Rule, error) {
	out := make([]domain.Rule, 0, len(pairs))
	for _, p := range pairs {
		from, to, ok := strings.Cut(p, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, perr.Configf("rewrite: table entry %q is not from=to", p)
		}
		out = append(out, domain.Rule{From: from, To: to})
	}
	return out, nil
}
