// Package logger builds the zap.SugaredLogger instances used across
// segchangelog's components. Every component gets its own named child
// logger, derived once from a single root logger, so log lines can be
// filtered by subsystem (segstore, idmapstore, updater; iddag and facade
// do no logging).
package logger

import "go.uber.org/zap"

// New creates a root logger scoped to the given service name.
func New(service string) *zap.SugaredLogger {
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	return base.Named(service).Sugar()
}

// Named derives a child logger scoped to a single component beneath an
// already-constructed root logger, e.g. Named(root, "segstore").
func Named(root *zap.SugaredLogger, component string) *zap.SugaredLogger {
	if root == nil {
		return New(component)
	}
	return root.Named(component)
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
