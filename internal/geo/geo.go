// Package geo resolves IP addresses to approximate location and network metadata.
//
// Providers may fail in any way; Client hides those failures behind a default
// "Unknown" result so callers always receive a value.
package geo

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hongminglow/iptrack-be/internal/models"
)

// Result is the provider-neutral shape of a geolocation lookup.
// City, Region, Country and Org are never empty; they hold "Unknown" instead.
type Result struct {
	IP             string   `json:"ip"`
	City           string   `json:"city"`
	Region         string   `json:"region"`
	Country        string   `json:"country"`
	Org            string   `json:"org"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	ASN            *string  `json:"asn,omitempty"`
	Carrier        *string  `json:"carrier,omitempty"`
	ConnectionType *string  `json:"connection_type,omitempty"`
	Proxy          bool     `json:"proxy"`
	VPN            bool     `json:"vpn"`
	Tor            bool     `json:"tor"`
}

// Unknown is the result used whenever a provider cannot answer for ip.
func Unknown(ip string) Result {
	return Result{
		IP:      ip,
		City:    models.Unknown,
		Region:  models.Unknown,
		Country: models.Unknown,
		Org:     models.Unknown,
	}
}

// Provider performs a single lookup against a geolocation source.
type Provider interface {
	Lookup(ctx context.Context, ip string) (Result, error)
}

// Client wraps a Provider and never returns an error.
type Client struct {
	provider Provider
	logger   *slog.Logger
}

// NewClient builds a Client around provider.
func NewClient(provider Provider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{provider: provider, logger: logger.With("module", "geo")}
}

// Lookup returns the provider's answer for ip, or Unknown(ip) when the provider fails.
func (c *Client) Lookup(ctx context.Context, ip string) Result {
	res, err := c.provider.Lookup(ctx, ip)
	if err != nil {
		c.logger.WarnContext(ctx, "geolocation lookup degraded",
			"operation", "geo_lookup",
			"outcome", "degraded",
			"ip", ip,
			"error", err.Error(),
		)
		return Unknown(ip)
	}
	return normalize(res, ip)
}

// normalize replaces blank strings with "Unknown" or nil so provider quirks never leak.
func normalize(res Result, ip string) Result {
	res.IP = ip
	res.City = orUnknown(res.City)
	res.Region = orUnknown(res.Region)
	res.Country = orUnknown(res.Country)
	res.Org = orUnknown(res.Org)
	res.ASN = nonBlank(res.ASN)
	res.Carrier = nonBlank(res.Carrier)
	res.ConnectionType = nonBlank(res.ConnectionType)
	return res
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return models.Unknown
	}
	return strings.TrimSpace(s)
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
