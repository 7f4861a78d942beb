package modkit

import (
	"recycle/internal/platform/config"
	"recycle/internal/platform/logger"
)

// Deps holds the process level dependencies passed to module constructors.
// Per worker services come from the container, never from here.
type Deps struct {
	Log  *logger.Logger
	Cfg  config.Conf
	Root string // module root directory; modules resolve their Dir against it
}
