package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldRunID         = "run_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorType     = "error_type"
	FieldOperation     = "operation"
	FieldAnalyzer      = "analyzer"
	FieldRow           = "row"
	FieldTransactionID = "transaction_id"
	FieldVendor        = "vendor"
	FieldCategory      = "category"
	FieldAttempt       = "attempt"
	FieldFindings      = "findings"
	FieldRowsReceived  = "rows_received"
	FieldRowsAccepted  = "rows_accepted"
	FieldRunStatus     = "run_status"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentIngest       = "ingest"
	ComponentAnalysis     = "analysis"
	ComponentOrchestrator = "orchestrator"
	ComponentPricing      = "pricing"
	ComponentLedger       = "ledger"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentNotify       = "notify"
	ComponentCache        = "cache"
	ComponentRateLimit    = "rate_limit"
)

// Operations defines standard operation names
const (
	OpRead      = "read"
	OpList      = "list"
	OpUpsert    = "upsert"
	OpNormalize = "normalize"
	OpGroup     = "group"
	OpAnalyze   = "analyze"
	OpLookup    = "lookup"
	OpPublish   = "publish"
	OpConsume   = "consume"
	OpNotify    = "notify"
	OpPersist   = "persist"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypePanic         = "panic"
	ErrorTypeInternal      = "internal_error"
	ErrorTypeSecurity      = "security_event"
	ErrorTypeRateLimit     = "rate_limited"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithRunID adds the analysis run identifier
func (f LogFields) WithRunID(runID string) LogFields {
	f[FieldRunID] = runID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(kind string) LogFields {
	f[FieldErrorType] = kind
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithAnalyzer adds the analyzer name
func (f LogFields) WithAnalyzer(name string) LogFields {
	f[FieldAnalyzer] = name
	return f
}

// WithRow adds ledger row position and transaction id
func (f LogFields) WithRow(row int, transactionID string) LogFields {
	f[FieldRow] = row
	if transactionID != "" {
		f[FieldTransactionID] = transactionID
	}
	return f
}

// WithVendor adds vendor and category fields
func (f LogFields) WithVendor(vendor, category string) LogFields {
	f[FieldVendor] = vendor
	f[FieldCategory] = category
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

// With adds an arbitrary field
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}
