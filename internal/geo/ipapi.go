package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxPayloadBytes = 1 << 20

// IPAPIProvider queries an ipapi.co-compatible JSON endpoint.
type IPAPIProvider struct {
	endpoint   string
	httpClient *http.Client
}

// NewIPAPIProvider builds a provider for endpoint, which must contain an {ip} placeholder.
func NewIPAPIProvider(endpoint string, timeout time.Duration) *IPAPIProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IPAPIProvider{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ipapiPayload struct {
	IP          string   `json:"ip"`
	City        string   `json:"city"`
	Region      string   `json:"region"`
	CountryName string   `json:"country_name"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	ASN         *string  `json:"asn"`
	Org         *string  `json:"org"`
	Carrier     *string  `json:"carrier"`
	Connection  *struct {
		Type *string `json:"type"`
	} `json:"connection"`
	Proxy *bool `json:"proxy"`
	VPN   *bool `json:"vpn"`
	Tor   *bool `json:"tor"`

	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// Lookup fetches metadata for ip.
func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (Result, error) {
	target := strings.ReplaceAll(p.endpoint, "{ip}", url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "iptrack-be/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var payload ipapiPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("decode provider payload: %w", err)
	}
	if payload.Error {
		return Result{}, fmt.Errorf("provider error: %s", payload.Reason)
	}

	res := Result{
		IP:        ip,
		City:      payload.City,
		Region:    payload.Region,
		Country:   payload.CountryName,
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
		ASN:       payload.ASN,
		Carrier:   payload.Carrier,
		Proxy:     deref(payload.Proxy),
		VPN:       deref(payload.VPN),
		Tor:       deref(payload.Tor),
	}
	if payload.Org != nil {
		res.Org = *payload.Org
	}
	if payload.Connection != nil {
		res.ConnectionType = payload.Connection.Type
	}
	return res, nil
}

func deref(b *bool) bool {
	return b != nil && *b
}
