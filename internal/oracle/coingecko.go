// Package oracle looks up fiat prices of the chain's native asset.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	// DefaultBaseURL is the public CoinGecko API.
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	// DefaultAsset is the CoinGecko id of ether.
	DefaultAsset = "ethereum"
)

// ErrPriceUnavailable covers every failure to obtain a usable price.
var ErrPriceUnavailable = errors.New("price unavailable")

// Client queries the CoinGecko simple price endpoint.
type Client struct {
	http *resty.Client
}

// New builds a client for baseURL with a per-request timeout. proxy is optional.
func New(baseURL string, timeout time.Duration, proxy string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cli := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout)
	if proxy != "" {
		cli = cli.SetProxy(proxy)
	}
	return &Client{http: cli}
}

// USDPrice returns the USD price of one unit of asset.
func (c *Client) USDPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	coin := strings.ToLower(asset)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"ids": coin, "vs_currencies": "usd"}).
		Get("/simple/price")
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: get %s: %v", ErrPriceUnavailable, coin, err)
	}
	if resp.IsError() {
		return decimal.Decimal{}, fmt.Errorf("%w: get %s: status %d", ErrPriceUnavailable, coin, resp.StatusCode())
	}

	respMap := map[string]map[string]decimal.Decimal{}
	if err := json.Unmarshal(resp.Body(), &respMap); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: parse %s: %v", ErrPriceUnavailable, coin, err)
	}
	priceMap, ok := respMap[coin]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no quote for %s", ErrPriceUnavailable, coin)
	}
	price, ok := priceMap["usd"]
	if !ok || !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: no usd quote for %s", ErrPriceUnavailable, coin)
	}
	return price, nil
}
