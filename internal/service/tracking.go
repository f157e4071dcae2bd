package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hongminglow/iptrack-be/internal/events"
	"github.com/hongminglow/iptrack-be/internal/geo"
	"github.com/hongminglow/iptrack-be/internal/models"
	"github.com/hongminglow/iptrack-be/internal/storage"
)

// TrackRequest describes one tracking call. IP wins over ObservedIP when set.
type TrackRequest struct {
	IP         string
	ObservedIP string
	UserAgent  string
}

// TrackingService geolocates addresses and appends the results to the log.
type TrackingService struct {
	logs      storage.LogStore
	geo       *geo.Client
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	publishTimeout time.Duration
}

// DefaultPublishTimeout bounds how long Track waits on the event publisher.
const DefaultPublishTimeout = 2 * time.Second

type TrackingOption func(*TrackingService)

// WithPublishTimeout overrides DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) TrackingOption {
	return func(s *TrackingService) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) TrackingOption {
	return func(s *TrackingService) { s.now = now }
}

func NewTrackingService(logs storage.LogStore, geoClient *geo.Client, publisher events.Publisher, logger *slog.Logger, opts ...TrackingOption) *TrackingService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &TrackingService{
		logs:      logs,
		geo:       geoClient,
		publisher: publisher,
		logger:    logger.With("module", "tracking"),
		now:       time.Now,

		publishTimeout: DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Track geolocates the request's address, stores the record and announces it.
func (s *TrackingService) Track(ctx context.Context, req TrackRequest) (models.TrackingRecord, error) {
	ip := req.IP
	if ip == "" {
		ip = strings.TrimSpace(req.ObservedIP)
	}
	if ip == "" {
		return models.TrackingRecord{}, fmt.Errorf("%w: no address to track", ErrValidation)
	}
	if !utf8.ValidString(ip) || strings.ContainsRune(ip, 0) {
		return models.TrackingRecord{}, fmt.Errorf("%w: address is not valid text", ErrValidation)
	}

	res := s.geo.Lookup(ctx, ip)
	rec := models.TrackingRecord{
		IP:             ip,
		Location:       formatLocation(res),
		ISP:            res.Org,
		Device:         req.UserAgent,
		Timestamp:      s.now().UTC(),
		Latitude:       res.Latitude,
		Longitude:      res.Longitude,
		ASN:            res.ASN,
		Org:            orgPointer(res.Org),
		Carrier:        res.Carrier,
		ConnectionType: res.ConnectionType,
		Proxy:          res.Proxy,
		VPN:            res.VPN,
		Tor:            res.Tor,
	}
	if rec.ISP == "" {
		rec.ISP = models.Unknown
	}

	stored, err := s.logs.AppendLog(ctx, rec)
	if err != nil {
		return models.TrackingRecord{}, fmt.Errorf("%w: append log: %v", ErrStorage, err)
	}

	if s.publisher != nil {
		s.publish(ctx, stored)
	}
	return stored, nil
}

// publish runs under its own deadline so a stalled broker cannot hold the response.
func (s *TrackingService) publish(ctx context.Context, rec models.TrackingRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.PublishTracked(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "tracked event not published",
			"operation", "publish",
			"outcome", "failure",
			"record_id", rec.ID,
			"error", err.Error(),
		)
	}
}

// Logs returns stored records newest first. limit <= 0 returns all of them.
func (s *TrackingService) Logs(ctx context.Context, limit int) ([]models.TrackingRecord, error) {
	recs, err := s.logs.ListLogs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list logs: %v", ErrStorage, err)
	}
	if recs == nil {
		recs = []models.TrackingRecord{}
	}
	return recs, nil
}

func formatLocation(res geo.Result) string {
	place := res.City
	if place == "" || place == models.Unknown {
		place = res.Region
	}
	if place == "" {
		place = models.Unknown
	}
	country := res.Country
	if country == "" {
		country = models.Unknown
	}
	return place + ", " + country
}

func orgPointer(org string) *string {
	if org == "" || org == models.Unknown {
		return nil
	}
	return &org
}
