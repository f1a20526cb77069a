package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-now/internal/models"
)

// ErrLatitudeInvalid is returned when latitude is NaN, infinite or outside [-90, 90].
var ErrLatitudeInvalid = errors.New("latitude out of range")

// ErrLongitudeInvalid is returned when longitude is NaN, infinite or outside [-180, 180].
var ErrLongitudeInvalid = errors.New("longitude out of range")

var validate = validator.New()

// ValidateCoordinate rejects position fixes that cannot be sent to the weather service.
// Both axes are checked; the latitude error wins when both are bad.
func ValidateCoordinate(c models.GeoCoordinate) error {
	if err := validate.Var(c.Latitude, "latitude"); err != nil {
		return fmt.Errorf("%w: %v", ErrLatitudeInvalid, c.Latitude)
	}
	if err := validate.Var(c.Longitude, "longitude"); err != nil {
		return fmt.Errorf("%w: %v", ErrLongitudeInvalid, c.Longitude)
	}
	return nil
}
