package mqtt

import "errors"

// Sentinel errors for broker operations, matched with errors.Is.
var (
	// ErrNotConnected means an operation ran against a down session.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed means the initial dial never completed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps a failed publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps a failed subscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed wraps a failed unsubscribe.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects empty topics.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
