package services

import "errors"

// Chat pipeline failures that the API layer maps onto HTTP statuses.
var (
	// ErrGatewayNotConfigured means the process started without a model
	// credential; chat is unavailable but the rest of the API works.
	ErrGatewayNotConfigured = errors.New("model gateway not configured")
	// ErrUpstreamUnavailable covers transport, quota and provider-side
	// failures. Nothing was persisted for the turn.
	ErrUpstreamUnavailable = errors.New("model upstream unavailable")
	// ErrUpstreamProtocol means the provider violated the completion
	// contract, e.g. calling tools after tool_choice was set to none.
	ErrUpstreamProtocol = errors.New("model upstream protocol violation")
	// ErrPersistenceFailed means the turn finished but could not be
	// committed; the transcript is unchanged.
	ErrPersistenceFailed = errors.New("turn persistence failed")
)
