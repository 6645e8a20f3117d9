package wazero

import (
	"context"
	"log/slog"

	"github.com/reglet-dev/lv2host/feature"
	"github.com/tetratelabs/wazero/api"
)

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var unitKey = &contextKey{name: "unit"}

// unitContext is what host functions know about the calling unit.
type unitContext struct {
	uri    string
	mapper feature.Mapper
	logger *slog.Logger
}

// withUnit adds the calling unit to the context passed into guest calls.
func withUnit(ctx context.Context, u *unitContext) context.Context {
	return context.WithValue(ctx, unitKey, u)
}

// unitFromContext retrieves the calling unit from the context.
func unitFromContext(ctx context.Context) (*unitContext, bool) {
	u, ok := ctx.Value(unitKey).(*unitContext)
	return u, ok
}

// unitName returns the URI of the calling unit, falling back to the module
// name.
func unitName(ctx context.Context, mod api.Module) string {
	if u, ok := unitFromContext(ctx); ok {
		return u.uri
	}
	return mod.Name()
}
