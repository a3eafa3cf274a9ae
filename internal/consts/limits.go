package consts

import "time"

// Buffer sizes for various operations
const (
	// BufferSize1KB is 1 kilobyte
	BufferSize1KB = 1024
	// BufferSize64KB is 64 kilobytes
	BufferSize64KB = 64 * 1024
	// BufferSize1MB is 1 megabyte
	BufferSize1MB = 1024 * 1024
	// BufferSize10MB is 10 megabytes
	BufferSize10MB = 10 * 1024 * 1024
)

// Wire protocol limits
const (
	// MaxLineBytes is the maximum length of one framed protocol line
	MaxLineBytes = BufferSize64KB
	// MaxFilePayloadBytes caps fileWrite content and fileRead results
	MaxFilePayloadBytes = BufferSize10MB
)

// Rate limiting defaults
const (
	// DefaultRateLimitWindow is the fixed window for per-caller operation counts
	DefaultRateLimitWindow = 60 * time.Second
	// DefaultRateLimitPerWindow is the number of requests allowed per window
	DefaultRateLimitPerWindow = 100
)

// Request authentication defaults
const (
	// DefaultFreshnessWindow is the maximum accepted clock skew for request timestamps
	DefaultFreshnessWindow = 2 * time.Minute
)

// Timeouts for various operations
const (
	// Timeout1Second is a 1 second timeout
	Timeout1Second = 1 * time.Second
	// Timeout2Seconds is a 2 second timeout
	Timeout2Seconds = 2 * time.Second
	// Timeout5Seconds is a 5 second timeout
	Timeout5Seconds = 5 * time.Second
	// Timeout10Seconds is a 10 second timeout
	Timeout10Seconds = 10 * time.Second
	// Timeout30Seconds is a 30 second timeout
	Timeout30Seconds = 30 * time.Second
	// Timeout60Seconds is a 60 second timeout (1 minute)
	Timeout60Seconds = 60 * time.Second
	// Timeout2Minutes is a 2 minute timeout
	Timeout2Minutes = 2 * time.Minute
)

// Time durations
const (
	// Duration1Hour is 1 hour
	Duration1Hour = 1 * time.Hour
	// Duration24Hours is 24 hours (1 day)
	Duration24Hours = 24 * time.Hour
)

// Retry and attempt limits
const (
	// DefaultMaxReconnectAttempts bounds client reconnection before giving up
	DefaultMaxReconnectAttempts = 10
)

// Audit defaults
const (
	// DefaultAuditRetention is how long audit events are kept before pruning
	DefaultAuditRetention = 30 * Duration24Hours
	// DefaultAuditQueueSize is the audit writer's channel capacity
	DefaultAuditQueueSize = 1024
)
