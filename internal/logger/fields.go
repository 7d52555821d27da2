package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Standard Tracing Fields (Context level)
// These fields are propagated through the call chain
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldUserID is the owning user ID
	FieldUserID = "user_id"

	// FieldContentID is the content item ID flowing through the pipeline
	FieldContentID = "content_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldKind is the content kind being processed
	FieldKind = "kind"
)

// ============================================
// Standard Metric Fields (Entry level)
// These fields are used for aggregation and alerting
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldRetry is the retry attempt number
	FieldRetry = "retry"
)
