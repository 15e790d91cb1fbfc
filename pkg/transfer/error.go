package transfer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/signup-ingress/pkg/converter"
	"github.com/David-Botos/signup-ingress/pkg/model"
	"github.com/David-Botos/signup-ingress/pkg/rules"
)

// Action defines the recommended action after an error
type Action int

const (
	// ActionContinue indicates the run should continue despite the error
	ActionContinue Action = iota
	// ActionAbort indicates the run should stop
	ActionAbort
)

// ErrorCategory identifies the pipeline stage an error came from
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategorySource
	ErrorCategoryCleaning
	ErrorCategoryVerification
	ErrorCategorySink
	ErrorCategoryAudit
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategorySource:
		return "Source"
	case ErrorCategoryCleaning:
		return "Cleaning"
	case ErrorCategoryVerification:
		return "Verification"
	case ErrorCategorySink:
		return "Sink"
	case ErrorCategoryAudit:
		return "Audit"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// MarshalText renders the category by name in JSON reports
func (ec ErrorCategory) MarshalText() ([]byte, error) {
	return []byte(ec.String()), nil
}

// ErrorRecord represents a single error during a run
type ErrorRecord struct {
	Category  ErrorCategory `json:"category"`
	Stage     string        `json:"stage,omitempty"` // sink or source name
	Error     error         `json:"-"`
	Message   string        `json:"message"` // Derived from Error but stored for serialization
	Timestamp time.Time     `json:"timestamp"`
}

// NewErrorRecord creates a new error record with current timestamp
func NewErrorRecord(err error, category ErrorCategory) ErrorRecord {
	record := ErrorRecord{
		Category:  category,
		Error:     err,
		Timestamp: time.Now(),
	}

	if err != nil {
		record.Message = err.Error()
	}

	return record
}

// WithStage names the source or sink the error came from
func (r ErrorRecord) WithStage(stage string) ErrorRecord {
	r.Stage = stage
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.Stage != "" {
		sb.WriteString(fmt.Sprintf("Stage: %s ", r.Stage))
	}

	sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	return sb.String()
}

// ErrorHandler records run errors and decides whether the run can go on
type ErrorHandler struct {
	logger      *zap.Logger
	errorCounts map[ErrorCategory]int
	records     []ErrorRecord
	mu          sync.Mutex
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:      logger,
		errorCounts: make(map[ErrorCategory]int),
	}
}

// CategorizeError maps an error from an unknown stage onto a category
func (eh *ErrorHandler) CategorizeError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ErrorCategoryNone
	case errors.Is(err, model.ErrMalformedRecord):
		return ErrorCategoryCleaning
	case errors.Is(err, converter.ErrMissingColumn), errors.Is(err, converter.ErrDuplicateColumn),
		errors.Is(err, rules.ErrInvalidRuleSet):
		return ErrorCategorySource
	case errors.Is(err, ErrVerificationFailed):
		return ErrorCategoryVerification
	default:
		return ErrorCategorySink
	}
}

// HandleError records an error and returns the action to take.
// Only audit failures let the run continue: the outputs are still correct.
func (eh *ErrorHandler) HandleError(record ErrorRecord) Action {
	eh.mu.Lock()
	eh.errorCounts[record.Category]++
	eh.records = append(eh.records, record)
	eh.mu.Unlock()

	if record.Category == ErrorCategoryAudit {
		eh.logger.Warn("Failed to record cleaning audit",
			zap.String("stage", record.Stage),
			zap.String("error", record.Message))
		return ActionContinue
	}

	eh.logger.Error("Run failed",
		zap.String("category", record.Category.String()),
		zap.String("stage", record.Stage),
		zap.String("error", record.Message))
	return ActionAbort
}

// Records returns every error handled so far
func (eh *ErrorHandler) Records() []ErrorRecord {
	eh.mu.Lock()
	defer eh.mu.Unlock()
	return append([]ErrorRecord(nil), eh.records...)
}

// ErrorCounts returns the number of errors seen per category
func (eh *ErrorHandler) ErrorCounts() map[ErrorCategory]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	counts := make(map[ErrorCategory]int, len(eh.errorCounts))
	for category, count := range eh.errorCounts {
		counts[category] = count
	}
	return counts
}
