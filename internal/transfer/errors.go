package transfer

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a submit arrives while another attempt is in flight.
var ErrBusy = errors.New("a transfer is already in progress")

// Reason classifies why an attempt failed.
type Reason string

const (
	ReasonProviderUnavailable  Reason = "ProviderUnavailable"
	ReasonConnectionRejected   Reason = "ConnectionRejected"
	ReasonRecipientUnavailable Reason = "RecipientUnavailable"
	ReasonInvalidAmount        Reason = "InvalidAmount"
	ReasonSubmissionRejected   Reason = "SubmissionRejected"
	ReasonPriceUnavailable     Reason = "PriceUnavailable"
	ReasonBackendRejected      Reason = "BackendRejected"
	ReasonNetworkError         Reason = "NetworkError"
)

// Error is the failure of one transfer attempt. TxHash is set once the
// transaction was accepted by the network; from then on the value has moved
// and only bookkeeping can have failed.
type Error struct {
	Reason Reason
	TxHash string
	Detail string
	Err    error
}

// Sent reports whether the on-chain transfer went out.
func (e *Error) Sent() bool {
	return e.TxHash != ""
}

// Message is the text shown to the user: the backend's own words for
// BackendRejected, otherwise the cause.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Reason)
}

func (e *Error) Error() string {
	if !e.Sent() {
		return fmt.Sprintf("transfer not sent: %s", e.Message())
	}
	switch e.Reason {
	case ReasonPriceUnavailable:
		return fmt.Sprintf("transfer sent (tx %s) but fiat conversion failed: %s", e.TxHash, e.Message())
	case ReasonBackendRejected:
		return fmt.Sprintf("transfer sent (tx %s) but the record was rejected: %s", e.TxHash, e.Message())
	default:
		return fmt.Sprintf("transfer sent (tx %s) but recording failed: %s", e.TxHash, e.Message())
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
