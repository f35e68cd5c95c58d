package solana

import "context"

// WSClient defines the Solana WebSocket subscriptions used to confirm sent transactions.
type WSClient interface {
	// SignatureSubscribe waits for a transaction signature to reach the client commitment.
	// The returned channel yields at most one notification and is then closed.
	SignatureSubscribe(ctx context.Context, signature string) (<-chan SignatureNotification, error)

	// SignatureUnsubscribe abandons a subscription that is no longer awaited.
	// Its channel is closed.
	SignatureUnsubscribe(ctx context.Context, signature string) error

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification represents a signatureNotification message.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       interface{} // nil when the transaction succeeded
}
