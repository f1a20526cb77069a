package location

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-now/internal/models"
	"github.com/kjstillabower/weather-now/internal/observability"
	"github.com/kjstillabower/weather-now/internal/validation"
)

// Authorization is the outcome of a location-access request.
type Authorization int

const (
	AuthorizationDenied Authorization = iota
	AuthorizationGranted
)

func (a Authorization) String() string {
	if a == AuthorizationGranted {
		return "granted"
	}
	return "denied"
}

// ParseAuthorization accepts "granted" or "denied" (case-insensitive).
func ParseAuthorization(s string) (Authorization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "granted":
		return AuthorizationGranted, nil
	case "denied":
		return AuthorizationDenied, nil
	default:
		return AuthorizationDenied, fmt.Errorf("unknown location permission %q", s)
	}
}

// ErrPositionUnavailable is returned when no position fix could be obtained.
var ErrPositionUnavailable = errors.New("position unavailable")

// Service is the host's location service. Both calls are single-shot.
type Service interface {
	RequestAuthorization(ctx context.Context) (Authorization, error)
	CurrentPosition(ctx context.Context) (models.GeoCoordinate, error)
}

// Source produces one position fix per call.
type Source interface {
	Name() string
	Position(ctx context.Context) (models.GeoCoordinate, error)
}

// Device pairs the user's recorded consent with a position source.
type Device struct {
	consent Authorization
	source  Source
	logger  *zap.Logger
}

func NewDevice(consent Authorization, source Source, logger *zap.Logger) *Device {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Device{consent: consent, source: source, logger: logger}
}

func (d *Device) RequestAuthorization(ctx context.Context) (Authorization, error) {
	if err := ctx.Err(); err != nil {
		return AuthorizationDenied, err
	}
	observability.LocationLookupsTotal.WithLabelValues(d.source.Name(), d.consent.String()).Inc()
	d.logger.Debug("location authorization", zap.String("source", d.source.Name()), zap.Stringer("result", d.consent))
	return d.consent, nil
}

// CurrentPosition refuses to read a fix without consent, so callers cannot skip authorization.
func (d *Device) CurrentPosition(ctx context.Context) (models.GeoCoordinate, error) {
	if d.consent != AuthorizationGranted {
		return models.GeoCoordinate{}, fmt.Errorf("%w: location access not granted", ErrPositionUnavailable)
	}

	coord, err := d.source.Position(ctx)
	if err != nil {
		observability.LocationLookupsTotal.WithLabelValues(d.source.Name(), "unavailable").Inc()
		if errors.Is(err, ErrPositionUnavailable) {
			return models.GeoCoordinate{}, err
		}
		return models.GeoCoordinate{}, fmt.Errorf("%w: %w", ErrPositionUnavailable, err)
	}
	if err := validation.ValidateCoordinate(coord); err != nil {
		observability.LocationLookupsTotal.WithLabelValues(d.source.Name(), "invalid").Inc()
		return models.GeoCoordinate{}, fmt.Errorf("%w: %w", ErrPositionUnavailable, err)
	}
	observability.LocationLookupsTotal.WithLabelValues(d.source.Name(), "success").Inc()
	return coord, nil
}

// StaticSource always reports the configured coordinate.
type StaticSource struct {
	coord models.GeoCoordinate
}

func NewStaticSource(latitude, longitude float64) *StaticSource {
	return &StaticSource{coord: models.GeoCoordinate{Latitude: latitude, Longitude: longitude}}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Position(ctx context.Context) (models.GeoCoordinate, error) {
	if err := ctx.Err(); err != nil {
		return models.GeoCoordinate{}, err
	}
	return s.coord, nil
}
