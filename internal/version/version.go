// Package version reports build metadata for the recycle binaries
package version

import "time"

// BuildInfo is what a binary knows about its own build
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// set with -ldflags "-X recycle/internal/version.version=v0.1.0 -X recycle/internal/version.commit=abcd"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns build info for service
func Info(service string) BuildInfo {
	return BuildInfo{Service: service, Version: version, Commit: commit, Date: date}
}

// Uptime is BuildInfo plus process start time, served by the API
type Uptime struct {
	BuildInfo
	Started string `json:"started"`
	Seconds int64  `json:"uptime_s"`
}

// Since reports uptime for service relative to started
func Since(service string, started, now time.Time) Uptime {
	return Uptime{
		BuildInfo: Info(service),
		Started:   started.UTC().Format(time.RFC3339),
		Seconds:   int64(now.Sub(started) / time.Second),
	}
}
