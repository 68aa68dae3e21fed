// Package appid holds the application identity used for help text, config
// discovery, environment prefixes and telemetry namespaces.
package appid

import (
	"context"
	"strings"
)

// Identity describes the application.
type Identity struct {
	BinaryName  string
	ConfigName  string
	EnvPrefix   string
	Description string
	Namespace   string
}

var defaultIdentity = Identity{
	BinaryName:  "quotagate",
	ConfigName:  "quotagate",
	EnvPrefix:   "QUOTAGATE_",
	Description: "Sliding-window rate limiter for a single outbound API quota",
	Namespace:   "quotagate",
}

// Default returns the built-in identity.
func Default() Identity {
	return defaultIdentity
}

// Get returns the identity. The context is accepted for parity with callers
// that resolve identity lazily.
func Get(ctx context.Context) (*Identity, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	identity := defaultIdentity
	return &identity, nil
}

// TelemetryNamespace returns the metric namespace, falling back to the
// binary name.
func (i Identity) TelemetryNamespace() string {
	if ns := strings.TrimSpace(i.Namespace); ns != "" {
		return ns
	}
	return i.BinaryName
}
