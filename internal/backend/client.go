// Package backend is the client of the record service that owns the
// recipient address and stores completed transfers.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the record service host used when none is configured.
const DefaultBaseURL = "http://localhost:3000"

// ErrUnreachable covers transport failures and undecodable responses.
var ErrUnreachable = errors.New("backend unreachable")

// RejectedError is an explicit refusal reported in the response body. Message
// is the backend's own text, unmodified.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// Record is the body of POST /store-data. Numeric values travel as strings.
type Record struct {
	From    string `json:"from"`
	Amount  string `json:"amount"`
	Balance string `json:"balance"`
	Dollar  string `json:"dollar,omitempty"`
	TxHash  string `json:"txHash"`
}

// StoreResult is the backend's answer to an accepted record.
type StoreResult struct {
	RecipientBalance string
}

type adminAddressResponse struct {
	AdminAddress string `json:"adminAddress"`
}

type storeResponse struct {
	Status bool `json:"status"`
	Data   struct {
		BalanceEth string `json:"balanceEth"`
	} `json:"data"`
	Error string `json:"error"`
}

// Client talks to the record service.
type Client struct {
	http *resty.Client
}

// New builds a client for baseURL with a per-request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cli := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: cli}
}

// AdminAddress fetches the configured recipient address.
func (c *Client) AdminAddress(ctx context.Context) (string, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/admin-address")
	if err != nil {
		return "", fmt.Errorf("%w: get admin address: %v", ErrUnreachable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: get admin address: status %d", ErrUnreachable, resp.StatusCode())
	}

	var out adminAddressResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("%w: parse admin address: %v", ErrUnreachable, err)
	}
	if out.AdminAddress == "" {
		return "", fmt.Errorf("%w: empty admin address", ErrUnreachable)
	}
	return out.AdminAddress, nil
}

// StoreData records a broadcast transfer. A body with status false yields a
// *RejectedError whatever the HTTP status code was.
func (c *Client) StoreData(ctx context.Context, rec Record) (StoreResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(rec).
		Post("/store-data")
	if err != nil {
		return StoreResult{}, fmt.Errorf("%w: store data: %v", ErrUnreachable, err)
	}

	var out storeResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return StoreResult{}, fmt.Errorf("%w: store data: status %d: %v", ErrUnreachable, resp.StatusCode(), err)
	}
	if !out.Status {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("record rejected (%s)", http.StatusText(resp.StatusCode()))
		}
		return StoreResult{}, &RejectedError{Message: msg}
	}
	return StoreResult{RecipientBalance: out.Data.BalanceEth}, nil
}
