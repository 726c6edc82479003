package transport

import "go.uber.org/zap"

// newDefaultLogger returns the no-op logger used when no Option supplies
// one, matching the disabled-by-default shape of yarpc's buffer middleware
// (zap.NewNop until a real *zap.Logger is configured).
func newDefaultLogger() *zap.Logger {
	return zap.NewNop()
}
