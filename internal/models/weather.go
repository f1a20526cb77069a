package models

// GeoCoordinate is a single position fix.
type GeoCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// WeatherSnapshot is one successful current-weather response, mapped from the upstream payload.
// Temperatures are °C, wind speed is m/s.
type WeatherSnapshot struct {
	Place       string        `json:"place"`
	Country     string        `json:"country"`
	Temperature float64       `json:"temperature"`
	FeelsLike   float64       `json:"feelsLike"`
	TempMin     float64       `json:"tempMin"`
	TempMax     float64       `json:"tempMax"`
	Humidity    int           `json:"humidity"`
	WindSpeed   float64       `json:"windSpeed"`
	Description string        `json:"description"`
	Icon        string        `json:"icon"`
	Coordinate  GeoCoordinate `json:"coordinate"`
}
