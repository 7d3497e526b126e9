// config_keys.go provides key-value access to configuration settings.
//
// Separated from config.go to isolate the key enumeration and string-based
// get/set logic, so config.go stays focused on YAML structure and loading
// while this file handles the CLI's `config get/set` surface.
//
// Design: pointers are used for optional fields so we can distinguish
// between "not set" (nil) and "explicitly set to zero". This enables proper
// defaulting - we only apply defaults when the user hasn't set a value.
package config

import (
	"fmt"
	"slices"
	"strconv"
)

// ValidKeys returns all valid configuration keys.
func ValidKeys() []string {
	return []string{
		"storage.backend", "storage.path", "storage.dsn", "storage.cas_root",
		"rate_limit.floor_ms", "rate_limit.ceiling_ms",
		"pager.min_chars_per_page",
		"crawl.max_retries", "crawl.base_retry_delay_ms", "crawl.fetch_timeout_ms",
	}
}

// IsValidKey returns true if the key is a valid configuration key.
func IsValidKey(key string) bool {
	return slices.Contains(ValidKeys(), key)
}

// Get returns the value of a configuration key as a string.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "storage.backend":
		return c.StorageBackend(), nil
	case "storage.path":
		return c.Storage.Path, nil
	case "storage.dsn":
		return c.Storage.DSN, nil
	case "storage.cas_root":
		return c.CASRoot(), nil
	case "rate_limit.floor_ms":
		return strconv.FormatInt(c.RateLimitFloorMS(), 10), nil
	case "rate_limit.ceiling_ms":
		return strconv.FormatInt(c.RateLimitCeilingMS(), 10), nil
	case "pager.min_chars_per_page":
		return strconv.Itoa(c.MinCharsPerPage()), nil
	case "crawl.max_retries":
		return strconv.Itoa(c.MaxRetries()), nil
	case "crawl.base_retry_delay_ms":
		return strconv.FormatInt(c.BaseRetryDelayMS(), 10), nil
	case "crawl.fetch_timeout_ms":
		return strconv.FormatInt(c.FetchTimeoutMS(), 10), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set sets the value of a configuration key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "storage.backend":
		if value != "sqlite" && value != "postgres" {
			return fmt.Errorf("%w: storage.backend must be sqlite or postgres", ErrInvalidValue)
		}
		c.Storage.Backend = value
	case "storage.path":
		c.Storage.Path = value
	case "storage.dsn":
		c.Storage.DSN = value
	case "storage.cas_root":
		c.Storage.CASRoot = value
	case "rate_limit.floor_ms":
		n, err := parsePositiveInt64(value)
		if err != nil {
			return fmt.Errorf("%w: rate_limit.floor_ms must be a positive integer", ErrInvalidValue)
		}
		c.RateLimit.FloorMS = &n
	case "rate_limit.ceiling_ms":
		n, err := parsePositiveInt64(value)
		if err != nil {
			return fmt.Errorf("%w: rate_limit.ceiling_ms must be a positive integer", ErrInvalidValue)
		}
		c.RateLimit.CeilingMS = &n
	case "pager.min_chars_per_page":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: pager.min_chars_per_page must be a non-negative integer", ErrInvalidValue)
		}
		c.Pager.MinCharsPerPage = &n
	case "crawl.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: crawl.max_retries must be a non-negative integer", ErrInvalidValue)
		}
		c.Crawl.MaxRetries = &n
	case "crawl.base_retry_delay_ms":
		n, err := parsePositiveInt64(value)
		if err != nil {
			return fmt.Errorf("%w: crawl.base_retry_delay_ms must be a positive integer", ErrInvalidValue)
		}
		c.Crawl.BaseRetryDelayMS = &n
	case "crawl.fetch_timeout_ms":
		n, err := parsePositiveInt64(value)
		if err != nil {
			return fmt.Errorf("%w: crawl.fetch_timeout_ms must be a positive integer", ErrInvalidValue)
		}
		c.Crawl.FetchTimeoutMS = &n
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func parsePositiveInt64(value string) (int64, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("not a positive integer")
	}
	return n, nil
}

// All returns all configuration values as a map.
func (c *Config) All() map[string]string {
	out := map[string]string{}
	for _, k := range ValidKeys() {
		v, _ := c.Get(k)
		out[k] = v
	}
	return out
}

// IsSet returns true if the key has an explicit value (not just defaults).
func (c *Config) IsSet(key string) bool {
	switch key {
	case "storage.backend":
		return c.Storage.Backend != ""
	case "storage.path":
		return c.Storage.Path != ""
	case "storage.dsn":
		return c.Storage.DSN != ""
	case "storage.cas_root":
		return c.Storage.CASRoot != ""
	case "rate_limit.floor_ms":
		return c.RateLimit.FloorMS != nil
	case "rate_limit.ceiling_ms":
		return c.RateLimit.CeilingMS != nil
	case "pager.min_chars_per_page":
		return c.Pager.MinCharsPerPage != nil
	case "crawl.max_retries":
		return c.Crawl.MaxRetries != nil
	case "crawl.base_retry_delay_ms":
		return c.Crawl.BaseRetryDelayMS != nil
	case "crawl.fetch_timeout_ms":
		return c.Crawl.FetchTimeoutMS != nil
	default:
		return false
	}
}
