package types

import (
	"errors"
	"strings"
)

// Domain errors shared across components
var (
	// ErrConnectivity indicates the vector store or a provider is unreachable.
	ErrConnectivity = errors.New("service unreachable")
	// ErrDimensionMismatch indicates a vector's length disagrees with the
	// collection's configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrMalformedResponse indicates a provider returned an unparseable payload.
	ErrMalformedResponse = errors.New("malformed provider response")
	// ErrRateLimited indicates a provider rejected a call for quota reasons.
	ErrRateLimited = errors.New("provider rate limited")
	// ErrEmbedding indicates an embedding call failed.
	ErrEmbedding = errors.New("embedding failed")
	// ErrIndexingInProgress indicates another ingestion run holds the writer lock.
	ErrIndexingInProgress = errors.New("indexing already in progress")
	// ErrCollectionMissing indicates the remote collection does not exist yet.
	ErrCollectionMissing = errors.New("collection does not exist")

	// Search result validation errors
	ErrInvalidResultID   = errors.New("result ID cannot be empty")
	ErrMissingFilePath   = errors.New("result file path is required")
	ErrInvalidSimilarity = errors.New("similarity must be between -1 and 1")
)

// connectivityMarkers are substrings that identify a connectivity-class
// failure from an error message alone. Remote services wrap transport
// errors inconsistently, so message matching is the common denominator.
var connectivityMarkers = []string{
	"connection",
	"timeout",
	"unavailable",
	"no such host",
	"refused",
}

// rateLimitMarkers identify quota/rate-limit failures by message content.
var rateLimitMarkers = []string{
	"429",
	"rate limit",
	"quota",
	"resource exhausted",
	"too many requests",
}

// IsConnectivityError reports whether err looks like a transport-level
// failure that a reconnect could fix.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectivity) {
		return true
	}
	return matchesAny(err.Error(), connectivityMarkers)
}

// IsRateLimitError reports whether err indicates the caller should back off
// longer than the generic transient-error delay.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	return matchesAny(err.Error(), rateLimitMarkers)
}

func matchesAny(msg string, markers []string) bool {
	msg = strings.ToLower(msg)
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
