// Package logging builds the process-wide zap logger.
package logging

import (
	"os"

	_ "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
)

// New returns a logger writing logfmt to stdout, or JSON in prod mode.
func New(level, service string, prod bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "logfmt"
	if prod {
		cfg.Encoding = "json"
	}
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	cfg.InitialFields = make(map[string]any)
	cfg.InitialFields["host"], _ = os.Hostname()
	cfg.InitialFields["service"] = service
	cfg.OutputPaths = []string{"stdout"}
	return cfg.Build()
}
