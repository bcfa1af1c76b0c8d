package reconciliation

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/odyssey-erp/odyssey-recon/internal/shared"
)

// ErrOrderNumberExhausted is returned when every regeneration attempt collided.
var ErrOrderNumberExhausted = errors.New("reconciliation: order number retries exhausted")

// ErrOrderAlreadyPaid rejects moving a Paid order back to an unpaid status.
var ErrOrderAlreadyPaid = errors.New("order is already paid")

// Classification is the transport-neutral outcome of an operation.
type Classification string

const (
	ClassOK            Classification = "OK"
	ClassBadRequest    Classification = "BadRequest"
	ClassNotFound      Classification = "NotFound"
	ClassInternalError Classification = "InternalError"
)

// HTTPStatus maps the classification onto an HTTP status code.
func (c Classification) HTTPStatus() int {
	switch c {
	case ClassOK:
		return http.StatusOK
	case ClassBadRequest:
		return http.StatusBadRequest
	case ClassNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Classify maps err onto a Classification. A nil error is OK.
func Classify(err error) Classification {
	switch {
	case err == nil:
		return ClassOK
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrIdempotencyConflict):
		return ClassBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return ClassNotFound
	default:
		return ClassInternalError
	}
}

// OperationResult is the envelope every operation answers with.
type OperationResult struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	Status        Classification `json:"status"`
	AffectedCount int            `json:"affectedCount"`
	ErrorDetails  []string       `json:"errorDetails,omitempty"`
	Data          any            `json:"data,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(message string, affected int, data any) OperationResult {
	return OperationResult{Success: true, Message: message, Status: ClassOK, AffectedCount: affected, Data: data}
}

// Failed builds a failed result from err. Internal errors get an opaque message.
func Failed(err error) OperationResult {
	class := Classify(err)
	if class == ClassOK {
		class = ClassInternalError
	}
	message := "internal error"
	if class != ClassInternalError {
		message = err.Error()
	}
	return OperationResult{Success: false, Message: message, Status: class}
}

// BatchOperationResult folds a batch outcome into the envelope. The batch
// succeeds when at least one entry was applied or the batch had no failures.
// A batch where nothing applied is internal if any item failed internally.
func BatchOperationResult(res BatchResult) OperationResult {
	details := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		details = append(details, fmt.Sprintf("item %d (order %d): %s", e.Index, e.OrderID, e.Message))
	}
	out := OperationResult{
		Success:       len(res.Errors) == 0 || res.AffectedCount > 0,
		Status:        ClassOK,
		AffectedCount: res.AffectedCount,
		ErrorDetails:  details,
		Data:          res,
	}
	switch {
	case len(res.Errors) == 0:
		out.Message = "all payments updated"
	case res.AffectedCount == 0:
		out.Status = ClassBadRequest
		for _, e := range res.Errors {
			if e.Status == ClassInternalError {
				out.Status = ClassInternalError
				break
			}
		}
		out.Message = "no payments updated"
	default:
		out.Message = "payments partially updated"
	}
	return out
}
