// Package builtin holds the functions available to every chat regardless of
// account configuration.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smarter-sh/smarter-sub001/tool"
)

// WeatherName is the function name of the weather built-in.
const WeatherName = "get_current_weather"

const (
	defaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
)

// WeatherOptions configure the weather built-in.
type WeatherOptions struct {
	GeocodeURL  string
	ForecastURL string
	HTTPClient  *http.Client
}

// Weather looks up current conditions from an Open-Meteo compatible API.
type Weather struct {
	opts WeatherOptions
}

// NewWeather constructs the weather built-in.
func NewWeather(optFns ...func(o *WeatherOptions)) *Weather {
	opts := WeatherOptions{
		GeocodeURL:  defaultGeocodeURL,
		ForecastURL: defaultForecastURL,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Weather{opts: opts}
}

func (w *Weather) Name() string { return WeatherName }

func (w *Weather) Description() string {
	return "Get the current weather in a given location"
}

func (w *Weather) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"location": map[string]any{
				"type":        "string",
				"description": "The city and state, e.g. San Francisco, CA",
			},
			"unit": map[string]any{
				"type": "string",
				"enum": []any{"celsius", "fahrenheit"},
			},
		},
		"required": []any{"location"},
	}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Time        string  `json:"time"`
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

// Call geocodes the location and returns the current conditions.
func (w *Weather) Call(ctx context.Context, args map[string]any) (any, error) {
	location, _ := args["location"].(string)
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, tool.NewToolError(WeatherName, "location is required", tool.CodeValidation)
	}
	unit, _ := args["unit"].(string)
	if unit != "fahrenheit" {
		unit = "celsius"
	}

	// "San Francisco, CA" geocodes on the city part
	city := strings.TrimSpace(strings.SplitN(location, ",", 2)[0])

	var geo geocodeResponse
	q := url.Values{"name": {city}, "count": {"1"}, "format": {"json"}}
	if err := w.getJSON(ctx, w.opts.GeocodeURL, q, &geo); err != nil {
		return nil, err
	}
	if len(geo.Results) == 0 {
		return nil, tool.NewToolError(WeatherName, fmt.Sprintf("location %q not found", location), "NOT_FOUND")
	}
	place := geo.Results[0]

	var fc forecastResponse
	q = url.Values{
		"latitude":         {strconv.FormatFloat(place.Latitude, 'f', 4, 64)},
		"longitude":        {strconv.FormatFloat(place.Longitude, 'f', 4, 64)},
		"current":          {"temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code"},
		"temperature_unit": {unit},
	}
	if err := w.getJSON(ctx, w.opts.ForecastURL, q, &fc); err != nil {
		return nil, err
	}

	return map[string]any{
		"location":       place.Name,
		"region":         place.Admin1,
		"country":        place.Country,
		"temperature":    fc.Current.Temperature,
		"unit":           unit,
		"humidity":       fc.Current.Humidity,
		"wind_speed_kmh": fc.Current.WindSpeed,
		"condition":      condition(fc.Current.WeatherCode),
		"observed_at":    fc.Current.Time,
	}, nil
}

func (w *Weather) getJSON(ctx context.Context, base string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := w.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather request: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("weather response: %w", err)
	}
	return nil
}

// condition maps a WMO weather interpretation code to text.
func condition(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code <= 3:
		return "Partly cloudy"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67, code >= 80 && code <= 82:
		return "Rain"
	case code >= 71 && code <= 77, code == 85 || code == 86:
		return "Snow"
	case code >= 95:
		return "Thunderstorm"
	}
	return "Unknown"
}
