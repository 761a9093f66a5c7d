package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ChainFamily identifies the structural family of a domain's event log format.
type ChainFamily string

const (
	FamilyEVM       ChainFamily = "evm"
	FamilySubstrate ChainFamily = "substrate"
)

// SharedConfig is the bridge-wide domain topology, fetched once at startup
// from the shared configuration service.
type SharedConfig struct {
	Domains []Domain `json:"domains"`
}

// Domain describes one blockchain participating in the bridge.
type Domain struct {
	ID                  uint8       `json:"id"`
	Name                string      `json:"name"`
	Type                ChainFamily `json:"type"`
	Bridge              string      `json:"bridge"`
	FeeRouter           string      `json:"feeRouter"`
	NativeTokenSymbol   string      `json:"nativeTokenSymbol"`
	NativeTokenDecimals int         `json:"nativeTokenDecimals"`
	StartBlock          uint64      `json:"startBlock"`
	BlockConfirmations  uint64      `json:"blockConfirmations"`
	SS58Prefix          uint16      `json:"ss58Prefix"`
	Resources           []Resource  `json:"resources"`
}

// Resource describes an asset class bridged between domains. The resource id
// is a 32-byte value unique across all domains.
type Resource struct {
	ResourceID string `json:"resourceId"`
	Type       string `json:"type"`
	Address    string `json:"address"`
	Symbol     string `json:"symbol"`
	Decimals   int    `json:"decimals"`
}

// Domain returns the domain with the given id.
func (c *SharedConfig) Domain(id uint8) (*Domain, bool) {
	for i := range c.Domains {
		if c.Domains[i].ID == id {
			return &c.Domains[i], true
		}
	}
	return nil, false
}

// Resource returns the domain's resource with the given id. Resource ids are
// compared case-insensitively since chains report mixed-case hex.
func (d *Domain) Resource(id string) (*Resource, bool) {
	for i := range d.Resources {
		if strings.EqualFold(d.Resources[i].ResourceID, id) {
			return &d.Resources[i], true
		}
	}
	return nil, false
}

// FetchSharedConfig retrieves the shared configuration document. Transient
// fetch failures are retried with exponential backoff; after the configured
// attempts are exhausted the error is returned and the process cannot run.
func FetchSharedConfig(ctx context.Context, src SharedConfigSource, logger *zap.Logger) (*SharedConfig, error) {
	client := &http.Client{Timeout: src.FetchTimeout}

	var lastErr error
	delay := src.RetryDelay
	for attempt := 0; attempt < src.RetryAttempts; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying shared config fetch",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}

		cfg, err := fetchOnce(ctx, client, src.URL)
		if err != nil {
			lastErr = err
			continue
		}
		logger.Info("Fetched shared configuration",
			zap.String("url", src.URL),
			zap.Int("domains", len(cfg.Domains)))
		return cfg, nil
	}
	return nil, fmt.Errorf("shared config fetch failed after %d attempts: %w", src.RetryAttempts, lastErr)
}

func fetchOnce(ctx context.Context, client *http.Client, url string) (*SharedConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch shared config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shared config fetch returned status %d", resp.StatusCode)
	}

	var cfg SharedConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode shared config: %w", err)
	}
	if len(cfg.Domains) == 0 {
		return nil, fmt.Errorf("shared config contains no domains")
	}
	return &cfg, nil
}
