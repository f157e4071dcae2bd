package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hongminglow/iptrack-be/internal/models"
)

const logColumns = `id, ip, location, isp, device, timestamp, latitude, longitude,
	asn, org, carrier, connection_type, proxy, vpn, tor`

// AppendLog inserts a tracking record and returns it with the generated ID.
func (s *Store) AppendLog(ctx context.Context, rec models.TrackingRecord) (models.TrackingRecord, error) {
	query := `
		INSERT INTO tracking_logs (ip, location, isp, device, timestamp, latitude, longitude,
			asn, org, carrier, connection_type, proxy, vpn, tor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + logColumns + `;`
	row := s.pool.QueryRow(ctx, query,
		rec.IP, rec.Location, rec.ISP, rec.Device, rec.Timestamp.UTC(),
		rec.Latitude, rec.Longitude, rec.ASN, rec.Org, rec.Carrier, rec.ConnectionType,
		rec.Proxy, rec.VPN, rec.Tor,
	)
	stored, err := scanLog(row)
	if err != nil {
		return models.TrackingRecord{}, fmt.Errorf("insert tracking log: %w", err)
	}
	return stored, nil
}

// ListLogs returns tracking records newest first.
func (s *Store) ListLogs(ctx context.Context, limit int) ([]models.TrackingRecord, error) {
	query := `SELECT ` + logColumns + ` FROM tracking_logs ORDER BY timestamp DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tracking logs: %w", err)
	}
	defer rows.Close()

	out := make([]models.TrackingRecord, 0)
	for rows.Next() {
		rec, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracking log: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking logs: %w", err)
	}
	return out, nil
}

func scanLog(row pgx.Row) (models.TrackingRecord, error) {
	var rec models.TrackingRecord
	err := row.Scan(
		&rec.ID, &rec.IP, &rec.Location, &rec.ISP, &rec.Device, &rec.Timestamp,
		&rec.Latitude, &rec.Longitude, &rec.ASN, &rec.Org, &rec.Carrier, &rec.ConnectionType,
		&rec.Proxy, &rec.VPN, &rec.Tor,
	)
	if err != nil {
		return models.TrackingRecord{}, err
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}
