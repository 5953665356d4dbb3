package download

import "context"

// StartCallback is called once a response is accepted, before the body is read.
// total is -1 if Content-Length is unknown.
type StartCallback func(name string, total int64)

// ProgressCallback is called during download to report progress of the file
// name. total is -1 if Content-Length is unknown.
type ProgressCallback func(name string, downloaded, total int64)

// CompleteCallback is called after the file name was renamed into place.
type CompleteCallback func(name string, size int64)

// Callback is a type constraint for callback functions that can be stored in context.
type Callback interface {
	StartCallback | ProgressCallback | CompleteCallback
}

type callbackKey[T Callback] struct{}

// WithCallback returns a context with the given callback.
func WithCallback[T Callback](ctx context.Context, cb T) context.Context {
	return context.WithValue(ctx, callbackKey[T]{}, cb)
}

// CallbackFromContext extracts the callback from context, or the zero value.
func CallbackFromContext[T Callback](ctx context.Context) T {
	if cb, ok := ctx.Value(callbackKey[T]{}).(T); ok {
		return cb
	}
	var zero T
	return zero
}
