package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NBUClient fetches official exchange rates from the National Bank of
// Ukraine statistics API.
type NBUClient struct {
	url string
	hc  *http.Client
}

// NewNBUClient builds a client for the NBU exchange endpoint.
func NewNBUClient(url string, timeout time.Duration) *NBUClient {
	if url == "" {
		url = "https://bank.gov.ua/NBUStatService/v1/statdirectory/exchange?json"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NBUClient{url: url, hc: &http.Client{Timeout: timeout}}
}

type nbuRow struct {
	Code string  `json:"cc"`
	Rate float64 `json:"rate"`
}

// FetchRates returns code -> UAH rates for the currencies the pipeline
// converts (USD, EUR).
func (c *NBUClient) FetchRates(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nbu request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nbu status %d", resp.StatusCode)
	}

	var rows []nbuRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("nbu decode: %w", err)
	}

	rates := make(map[string]float64)
	for _, row := range rows {
		switch row.Code {
		case "USD", "EUR":
			rates[row.Code] = row.Rate
		}
	}
	return rates, nil
}
