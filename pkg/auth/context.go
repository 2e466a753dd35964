package auth

import "context"

// infoContextKey is an unexported type so Info values stored in a
// context can never collide with keys from other packages.
type infoContextKey struct{}

// WithInfo returns a copy of ctx carrying info. A nil info is a no-op.
func WithInfo(ctx context.Context, info *Info) context.Context {
	if info == nil {
		return ctx
	}
	return context.WithValue(ctx, infoContextKey{}, info)
}

// InfoFromContext retrieves the Info attached by WithInfo, if any.
func InfoFromContext(ctx context.Context) (*Info, bool) {
	info, ok := ctx.Value(infoContextKey{}).(*Info)
	return info, ok
}
