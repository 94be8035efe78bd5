package secondary

import "context"

// Notifier defines the secondary port for one notification channel.
type Notifier interface {
	// Channel returns the channel name this notifier serves, e.g. "log" or "webhook:<url>".
	Channel() string

	// Notify delivers one payload.
	Notify(ctx context.Context, payload NotificationPayload) error
}

// NotificationPayload is what auto-degrade sends after a rollback.
type NotificationPayload struct {
	TraceID     string   `json:"trace_id"`
	Scope       string   `json:"scope"`
	ActionTaken string   `json:"action_taken"`
	ReasonCodes []string `json:"reason_codes"`
	Channels    []string `json:"channels"`
	TriggeredAt string   `json:"triggered_at"`
}

// DeliveryResult reports the outcome of delivering a payload to one channel.
type DeliveryResult struct {
	Channel string
	Payload NotificationPayload
	Err     error
}

// NotificationDispatcher defines the secondary port for asynchronous,
// best-effort notification fan-out.
type NotificationDispatcher interface {
	// Dispatch enqueues a payload without waiting for delivery.
	// It returns an error only when the payload cannot be queued.
	Dispatch(payload NotificationPayload) error
}
