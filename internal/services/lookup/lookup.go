// Package lookup resolves an address to coordinates and fetches the current weather there.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"lsd-worker-go/internal/models"
)

// defaultVaporPressure is used when the weather record carries no pressure field
const defaultVaporPressure = 1013.0

// HTTPClient is the subset of *http.Client used by the lookup clients
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Geocoder resolves free-text addresses
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Location, error)
}

// WeatherProvider returns current weather for coordinates
type WeatherProvider interface {
	Current(ctx context.Context, lat, lon float64) (models.WeatherRecord, error)
}

// GoMapsGeocoder talks to a Google-compatible geocoding endpoint
type GoMapsGeocoder struct {
	baseURL string
	apiKey  string
	client  HTTPClient
}

func NewGeocoder(baseURL, apiKey string, timeout time.Duration) *GoMapsGeocoder {
	return NewGeocoderWithClient(baseURL, apiKey, &http.Client{Timeout: timeout})
}

func NewGeocoderWithClient(baseURL, apiKey string, client HTTPClient) *GoMapsGeocoder {
	return &GoMapsGeocoder{baseURL: baseURL, apiKey: apiKey, client: client}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func (g *GoMapsGeocoder) Geocode(ctx context.Context, address string) (models.Location, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", g.apiKey)

	var resp geocodeResponse
	if err := getJSON(ctx, g.client, g.baseURL+"?"+q.Encode(), &resp); err != nil {
		return models.Location{}, fmt.Errorf("%w: failed to get coordinates: %v", models.ErrUpstreamLookupFailed, err)
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = "status " + resp.Status
		}
		return models.Location{}, fmt.Errorf("%w: failed to get coordinates: %s", models.ErrUpstreamLookupFailed, msg)
	}

	loc := resp.Results[0].Geometry.Location
	return models.Location{Address: address, Latitude: loc.Lat, Longitude: loc.Lng}, nil
}

// OpenWeather talks to the OpenWeatherMap current weather API
type OpenWeather struct {
	baseURL string
	apiKey  string
	client  HTTPClient
}

func NewOpenWeather(baseURL, apiKey string, timeout time.Duration) *OpenWeather {
	return NewOpenWeatherWithClient(baseURL, apiKey, &http.Client{Timeout: timeout})
}

func NewOpenWeatherWithClient(baseURL, apiKey string, client HTTPClient) *OpenWeather {
	return &OpenWeather{baseURL: baseURL, apiKey: apiKey, client: client}
}

// weatherCode accepts both numeric and string "cod" fields; the API returns either
type weatherCode int

func (c *weatherCode) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*c = weatherCode(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*c = weatherCode(n)
	return nil
}

type weatherResponse struct {
	Cod     weatherCode `json:"cod"`
	Message string      `json:"message"`
	Main    struct {
		Temp     float64  `json:"temp"`
		Humidity float64  `json:"humidity"`
		Pressure *float64 `json:"pressure"`
	} `json:"main"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
}

func (o *OpenWeather) Current(ctx context.Context, lat, lon float64) (models.WeatherRecord, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", o.apiKey)
	q.Set("units", "metric")

	var resp weatherResponse
	if err := getJSON(ctx, o.client, o.baseURL+"?"+q.Encode(), &resp); err != nil {
		return models.WeatherRecord{}, fmt.Errorf("%w: failed to fetch weather data: %v", models.ErrUpstreamLookupFailed, err)
	}
	if resp.Cod != http.StatusOK {
		msg := resp.Message
		if msg == "" {
			msg = fmt.Sprintf("cod %d", resp.Cod)
		}
		return models.WeatherRecord{}, fmt.Errorf("%w: failed to fetch weather data: %s", models.ErrUpstreamLookupFailed, msg)
	}

	pressure := defaultVaporPressure
	if resp.Main.Pressure != nil {
		pressure = *resp.Main.Pressure
	}
	return models.WeatherRecord{
		Temperature:   resp.Main.Temp,
		Humidity:      resp.Main.Humidity,
		Precipitation: resp.Rain.OneHour,
		CloudCover:    resp.Clouds.All,
		VaporPressure: pressure,
	}, nil
}

// getJSON decodes the body regardless of status; both APIs report failures in the payload
func getJSON(ctx context.Context, client HTTPClient, target string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
