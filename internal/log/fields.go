package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldExpenseID   = "expense_id"
	FieldUser        = "user"
	FieldCategory    = "category"
	FieldSubCategory = "sub_category"
	FieldAmount      = "amount"
	FieldDate        = "date"
	FieldExternalID  = "external_id"
	FieldSession     = "session_id"
	FieldStep        = "step"
	FieldFields      = "fields"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentWizard      = "wizard"
	ComponentPersistence = "persistence"
	ComponentStorage     = "storage"
	ComponentSync        = "sync"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentSheets      = "sheets"
	ComponentAttachments = "attachments"
	ComponentCache       = "cache"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpList     = "list"
	OpSync     = "sync"
	OpResolve  = "resolve"
	OpValidate = "validate"
	OpAdvance  = "advance"
	OpSubmit   = "submit"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeDatabase   = "database_error"
	ErrorTypeNetwork    = "network_error"
	ErrorTypeAuth       = "auth_error"
	ErrorTypeSchema     = "schema_error"
	ErrorTypeTimeout    = "timeout_error"
	ErrorTypeInternal   = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(t string) LogFields {
	f[FieldErrorType] = t
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithExpense adds the fields needed to reconcile a record offline.
func (f LogFields) WithExpense(id int64, user, category, subCategory, amount, date string) LogFields {
	if id > 0 {
		f[FieldExpenseID] = id
	}
	f[FieldUser] = user
	f[FieldCategory] = category
	f[FieldSubCategory] = subCategory
	f[FieldAmount] = amount
	f[FieldDate] = date
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, clientIP string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldClientIP] = clientIP
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
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
