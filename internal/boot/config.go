package boot

import (
	"strings"

	"recycle/internal/platform/config"
)

// Order values for Config.Order
const (
	OrderGraph    = "graph"
	OrderSequence = "sequence"
)

// Config is the process configuration shared by the binaries
type Config struct {
	ConfigDir  string // base rule source: <ConfigDir>/reset.json
	ModuleRoot string // module directories are resolved against it
	Workers    int
	Order      string
}

// FromConfig reads RECYCLE_* settings. Relative directories resolve against
// the working directory.
func FromConfig(cfg config.Conf) Config {
	root := cfg.MayDir("MODULE_ROOT", ".", "")
	return Config{
		ConfigDir:  cfg.MayDir("CONFIG_DIR", "etc", root),
		ModuleRoot: root,
		Workers:    cfg.MayPositive("WORKERS", 4),
		Order:      strings.ToLower(cfg.MayEnum("ORDER", OrderGraph, OrderGraph, OrderSequence)),
	}
}
