// README: Notifier capability; delivery of notifications is best-effort.
package notify

import (
	"context"

	"hmarket/internal/types"
)

// AdminAudience is the pseudo-recipient for notifications addressed to every
// admin; fan-out implementations treat it as one more subscription target.
const AdminAudience types.ID = "admins"

type Notification struct {
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Notifier delivers a notification to one recipient. Implementations must not
// block the caller for long; errors are logged by the caller and never affect
// the operation that triggered the notification.
type Notifier interface {
	Send(ctx context.Context, userID types.ID, n Notification) error
}
