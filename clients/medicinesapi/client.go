package medicinesapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meghashyamc/clinicsearch/config"
	"github.com/meghashyamc/clinicsearch/logger"
)

const maxErrorBodyBytes = 512

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

func New(logger logger.Logger, cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.GetMedicinesURL(),
		httpClient: &http.Client{Timeout: cfg.GetMedicinesTimeout()},
		logger:     logger,
	}
}

// FetchAll lists every medicine known to the medicines API.
func (c *Client) FetchAll(ctx context.Context) ([]Medicine, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("medicines url is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		c.logger.Error("could not build medicines request", "url", c.baseURL, "err", err.Error())
		return nil, fmt.Errorf("could not build medicines request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("medicines request failed", "url", c.baseURL, "err", err.Error())
		return nil, fmt.Errorf("medicines request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.logger.Error("medicines request returned an unexpected status", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("medicines request returned status %d", resp.StatusCode)
	}

	var payload listResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Error("could not decode medicines response", "err", err.Error())
		return nil, fmt.Errorf("could not decode medicines response: %w", err)
	}

	c.logger.Debug("fetched medicines", "count", len(payload.Data.Data), "took", time.Since(start).String())
	return payload.Data.Data, nil
}
