package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/XavTo/Blockchain/internal/logging"
)

// ValidateConfig performs validation on the complete configuration
func ValidateConfig(config *Config) error {
	if err := config.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}

	if err := validateLedgerConfig(&config.Ledger); err != nil {
		return fmt.Errorf("ledger config validation failed: %w", err)
	}

	if err := config.Database.Validate(); err != nil {
		return fmt.Errorf("database config validation failed: %w", err)
	}

	if err := validateJournalConfig(config); err != nil {
		return fmt.Errorf("journal config validation failed: %w", err)
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log config validation failed: %w", err)
	}
	switch strings.ToLower(config.Log.Format) {
	case "", logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("log config validation failed: unknown format %q", config.Log.Format)
	}

	if err := validateOffersConfig(&config.Offers); err != nil {
		return fmt.Errorf("offers config validation failed: %w", err)
	}

	return nil
}

func validateLedgerConfig(lc *LedgerConfig) error {
	if err := lc.Config.Validate(); err != nil {
		return err
	}
	if lc.FaucetURL != "" {
		u, err := url.Parse(lc.FaucetURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid faucet url: %q", lc.FaucetURL)
		}
	}
	return nil
}

func validateJournalConfig(config *Config) error {
	j := config.Journal
	if strings.TrimSpace(j.Dir) == "" {
		return fmt.Errorf("journal dir is required")
	}
	if j.SegmentThreshold <= 0 {
		return fmt.Errorf("segment_threshold must be positive, got %d", j.SegmentThreshold)
	}
	if j.MaxSegments <= 0 {
		return fmt.Errorf("max_segments must be positive, got %d", j.MaxSegments)
	}
	return nil
}

func validateOffersConfig(oc *OffersConfig) error {
	if oc.FeeBufferDrops < 0 {
		return fmt.Errorf("fee_buffer_drops must be >= 0, got %d", oc.FeeBufferDrops)
	}
	if oc.FollowUpTimeout < 0 {
		return fmt.Errorf("follow_up_timeout must be >= 0")
	}
	if oc.FollowUpTimeout > 0 && oc.FollowUpInterval <= 0 {
		return fmt.Errorf("follow_up_interval must be positive when follow-ups are enabled")
	}
	if oc.FanOut <= 0 {
		return fmt.Errorf("fan_out must be positive, got %d", oc.FanOut)
	}
	if oc.WalletCacheSize <= 0 {
		return fmt.Errorf("wallet_cache_size must be positive, got %d", oc.WalletCacheSize)
	}
	return nil
}
