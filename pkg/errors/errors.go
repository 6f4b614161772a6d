package errors

import (
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

type Reason string

const (
	ReasonValidation    Reason = "Validation"
	ReasonNotFound      Reason = "NotFound"
	ReasonConflict      Reason = "Conflict"
	ReasonAlreadyExists Reason = "AlreadyExists"
	ReasonStorage       Reason = "Storage"
	ReasonNotification  Reason = "Notification"
)

type TrainingError struct {
	Code        int
	Reason      Reason
	Message     string
	Description string
}

func (t TrainingError) Error() string {
	return t.Message
}

func NewValidation(msg string) TrainingError {
	return TrainingError{
		Code:        http.StatusBadRequest,
		Reason:      ReasonValidation,
		Message:     msg,
		Description: "invalid input",
	}
}

func NewNotFound(msg string) TrainingError {
	return TrainingError{
		Code:        http.StatusNotFound,
		Reason:      ReasonNotFound,
		Message:     msg,
		Description: "resource not found",
	}
}

// NewConflict is used when a request is well formed but the current state forbids it,
// e.g. completing a locked section or retaking a quiz that is still in progress.
func NewConflict(msg string) TrainingError {
	return TrainingError{
		Code:        http.StatusConflict,
		Reason:      ReasonConflict,
		Message:     msg,
		Description: "operation not allowed in current state",
	}
}

func NewAlreadyExists(msg string) TrainingError {
	return TrainingError{
		Code:        http.StatusConflict,
		Reason:      ReasonAlreadyExists,
		Message:     msg,
		Description: "resource already exists",
	}
}

func NewStorage(msg string) TrainingError {
	return TrainingError{
		Code:        http.StatusInternalServerError,
		Reason:      ReasonStorage,
		Message:     msg,
		Description: "record store failure",
	}
}

func NewNotification(msg string) TrainingError {
	return TrainingError{
		Code:        http.StatusBadGateway,
		Reason:      ReasonNotification,
		Message:     msg,
		Description: "notification failed",
	}
}

func reasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	te, ok := pkgerrors.Cause(err).(TrainingError)
	if !ok {
		return ""
	}
	return te.Reason
}

func IsValidation(err error) bool {
	return reasonOf(err) == ReasonValidation
}

func IsNotFound(err error) bool {
	return reasonOf(err) == ReasonNotFound
}

func IsConflict(err error) bool {
	return reasonOf(err) == ReasonConflict
}

func IsAlreadyExists(err error) bool {
	return reasonOf(err) == ReasonAlreadyExists
}

func IsStorage(err error) bool {
	return reasonOf(err) == ReasonStorage
}

func IsNotification(err error) bool {
	return reasonOf(err) == ReasonNotification
}

// HTTPStatus maps an error to the status code a server should answer with.
func HTTPStatus(err error) int {
	if te, ok := pkgerrors.Cause(err).(TrainingError); ok {
		return te.Code
	}
	return http.StatusInternalServerError
}

// GetErrorMessage returns the message of the underlying TrainingError, falling back to
// the full error chain.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if te, ok := pkgerrors.Cause(err).(TrainingError); ok {
		return te.Message
	}
	return err.Error()
}
