// Package logformat provides concrete logfile.LogFormat implementations
// and the shared timestamp/level detection helpers they build on.
package logformat

import (
	"github.com/dvirtanen/logdex/internal/config"
	"github.com/dvirtanen/logdex/internal/logfile"
)

// Registry supplies candidate formats in a fixed order for
// auto-detection. BracketFormat is tried first since its prefix is
// more specific; GenericFormat, which matches any timestamp anywhere
// in the line, is the catch-all and must come last.
type Registry struct {
	formats []logfile.LogFormat
}

// NewRegistry builds the standard format registry from configuration.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		formats: []logfile.LogFormat{
			NewBracketFormat(&cfg.Formats),
			NewGenericFormat(&cfg.LogLevels),
		},
	}
}

func (r *Registry) Formats() []logfile.LogFormat { return r.formats }
