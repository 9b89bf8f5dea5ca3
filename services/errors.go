package services

import "context"

// ServiceError is a typed error carrying an HTTP status code, a
// machine-checkable reason, and a human-readable message.
type ServiceError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// IdempotencyGuard marks operations as done-once so a retried request does
// not repeat their side effects. Implemented by cache.IdempotencyStore.
type IdempotencyGuard interface {
	Get(ctx context.Context, scope, key string) (string, error)
	SetOnce(ctx context.Context, scope, key, value string) (bool, error)
	Release(ctx context.Context, scope, key string) error
}
