package ports

import "context"

// HealthChecker is one dependency probed by GET /health. The handler reports
// each checker under its Name and answers 503 if any Ping fails.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
