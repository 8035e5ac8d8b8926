package llm

import "errors"

// Gateway errors. Callers map these to their own failure taxonomy; the
// distinction matters because quota and transport failures are retryable
// while protocol violations are not.
var (
	// ErrTransport covers network-level failures reaching the provider.
	ErrTransport = errors.New("llm: transport failure")
	// ErrQuota is returned on rate-limit responses (HTTP 429).
	ErrQuota = errors.New("llm: quota exhausted")
	// ErrInvalidReply means the provider answered with a payload that
	// violates the chat-completions contract.
	ErrInvalidReply = errors.New("llm: invalid reply")
	// ErrInternal is returned on provider-side 5xx responses.
	ErrInternal = errors.New("llm: provider internal error")
)
