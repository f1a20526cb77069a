package screen

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	LoadingText = "Loading weather data..."
	RetryText   = "Tap to retry"

	iconURLTemplate = "https://openweathermap.org/img/wn/%s@4x.png"
)

// View is the display-ready form of a State. Only the fields for the current phase are set.
type View struct {
	Phase      string `json:"phase"`
	Refreshing bool   `json:"refreshing"`

	Loading string `json:"loading,omitempty"`

	Error string `json:"error,omitempty"`
	Retry string `json:"retry,omitempty"`

	Location    string `json:"location,omitempty"`
	IconURL     string `json:"iconUrl,omitempty"`
	Temperature string `json:"temperature,omitempty"`
	Description string `json:"description,omitempty"`
	FeelsLike   string `json:"feelsLike,omitempty"`
	Humidity    string `json:"humidity,omitempty"`
	Wind        string `json:"wind,omitempty"`
	MinMax      string `json:"minMax,omitempty"`
}

// Present maps s onto display strings.
func Present(s State) View {
	v := View{Phase: s.Phase().String(), Refreshing: s.Refreshing()}

	switch s.Phase() {
	case PhaseLoading:
		v.Loading = LoadingText
	case PhaseError:
		f, _ := s.Failure()
		if f != nil {
			v.Error = f.Message
		}
		v.Retry = RetryText
	case PhaseReady:
		snap, _ := s.Snapshot()
		v.Location = fmt.Sprintf("%s, %s", snap.Place, snap.Country)
		if snap.Icon != "" {
			v.IconURL = fmt.Sprintf(iconURLTemplate, snap.Icon)
		}
		v.Temperature = celsius(snap.Temperature)
		v.Description = capitalize(snap.Description)
		v.FeelsLike = celsius(snap.FeelsLike)
		v.Humidity = fmt.Sprintf("%d%%", snap.Humidity)
		v.Wind = fmt.Sprintf("%d km/h", round(snap.WindSpeed*3.6))
		v.MinMax = fmt.Sprintf("Min: %s ~ Max: %s", celsius(snap.TempMin), celsius(snap.TempMax))
	}
	return v
}

// Lines renders v as plain text, one element per line.
func (v View) Lines() []string {
	var lines []string
	switch v.Phase {
	case PhaseLoading.String():
		lines = append(lines, v.Loading)
	case PhaseError.String():
		lines = append(lines, v.Error, "", v.Retry)
	case PhaseReady.String():
		lines = append(lines,
			v.Location,
			v.Temperature,
			v.Description,
			"",
			"Feels like: "+v.FeelsLike,
			"Humidity: "+v.Humidity,
			"Wind: "+v.Wind,
			v.MinMax,
		)
	}
	if v.Refreshing {
		lines = append(lines, "", "Refreshing...")
	}
	return lines
}

// String renders v as plain text.
func (v View) String() string {
	return strings.Join(v.Lines(), "\n")
}

func celsius(t float64) string {
	return fmt.Sprintf("%d°C", round(t))
}

// round is half-up (toward +Inf): 2.5 → 3, -2.5 → -2.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
