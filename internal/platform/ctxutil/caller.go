package ctxutil

import "context"

type callerKey struct{}

// Caller is the already-authenticated identity a request runs as.
type Caller struct {
	ID    string
	Email string
}

func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func GetCaller(ctx context.Context) *Caller {
	if ctx == nil {
		return nil
	}
	if c, ok := ctx.Value(callerKey{}).(*Caller); ok {
		return c
	}
	return nil
}
