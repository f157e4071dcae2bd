package models

import "time"

// Unknown is the placeholder written for geolocation fields the provider could not resolve.
const Unknown = "Unknown"

// TrackingRecord is one row of the append-only IP lookup log.
type TrackingRecord struct {
	ID             int64     `json:"id"`
	IP             string    `json:"ip"`
	Location       string    `json:"location"`
	ISP            string    `json:"isp"`
	Device         string    `json:"device"`
	Timestamp      time.Time `json:"timestamp"`
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	ASN            *string   `json:"asn"`
	Org            *string   `json:"org"`
	Carrier        *string   `json:"carrier"`
	ConnectionType *string   `json:"connection_type"`
	Proxy          bool      `json:"proxy"`
	VPN            bool      `json:"vpn"`
	Tor            bool      `json:"tor"`
}
