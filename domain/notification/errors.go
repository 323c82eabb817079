package notification

import "errors"

// Domain errors for notification operations.
var (
	// ErrListenerClosed indicates the listener's session is gone. The
	// broadcaster detaches a listener that returns it.
	ErrListenerClosed = errors.New("listener closed")

	// ErrDeliveryFailed indicates a listener could not take an event.
	ErrDeliveryFailed = errors.New("notification delivery failed")

	// ErrBroadcasterClosed indicates the broadcaster has been closed.
	ErrBroadcasterClosed = errors.New("broadcaster is closed")

	// ErrEndpointUnavailable indicates the webhook endpoint is not reachable.
	ErrEndpointUnavailable = errors.New("webhook endpoint unavailable")

	// ErrEndpointRejected indicates the endpoint rejected the notification.
	ErrEndpointRejected = errors.New("webhook endpoint rejected notification")

	// ErrInvalidEndpoint indicates the endpoint configuration is invalid.
	ErrInvalidEndpoint = errors.New("invalid endpoint configuration")
)
