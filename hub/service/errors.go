package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/plgd-dev/websub-hub/pkg/sync/task/queue"
)

// ValidationError is a missing or malformed hub request parameter.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %v", e.Param)
	}
	return fmt.Sprintf("invalid %v: %v", e.Param, e.Reason)
}

func missingParam(param string) error {
	return &ValidationError{Param: param, Reason: "missing"}
}

// TopicMismatchError is a topic which differs from the self link advertised by its resource.
type TopicMismatchError struct {
	Topic string
	Self  string
}

func (e *TopicMismatchError) Error() string {
	return fmt.Sprintf("invalid hub.topic('%v'): resource advertises self link '%v'", e.Topic, e.Self)
}

// VerificationFailure is a subscriber which did not confirm the intent.
type VerificationFailure struct {
	Callback   string
	StatusCode int
	Reason     string
}

func (e *VerificationFailure) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("verification of %v failed: %v", e.Callback, e.Reason)
	}
	return fmt.Sprintf("verification of %v failed with status code %v: %v", e.Callback, e.StatusCode, e.Reason)
}

// DeliveryFailure is a notification attempt without a 2xx response.
type DeliveryFailure struct {
	Callback   string
	StatusCode int
	Attempt    int
	Err        error
}

func (e *DeliveryFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery attempt %v to %v failed: %v", e.Attempt, e.Callback, e.Err)
	}
	return fmt.Sprintf("delivery attempt %v to %v failed with status code %v", e.Attempt, e.Callback, e.StatusCode)
}

func (e *DeliveryFailure) Unwrap() error {
	return e.Err
}

func errToStatus(err error) int {
	var validationErr *ValidationError
	var mismatchErr *TopicMismatchError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &mismatchErr):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
