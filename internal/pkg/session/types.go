// internal/pkg/session/types.go
package session

import (
	"context"
	"time"
)

const revokedPrefix = "session:revoked:"

// Revocations records access tokens withdrawn before they expire. Entries
// only need to outlive the token they name.
type Revocations interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
