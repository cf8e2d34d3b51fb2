package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/smukkama/weather-alarms/pkg/config"
)

// Conditions are the current weather conditions at a coordinate
type Conditions struct {
	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	TempHigh    float64 `json:"temp_high"`
	TempLow     float64 `json:"temp_low"`
	Description string  `json:"description"`
}

// Client fetches current weather from an OpenWeatherMap compatible API
type Client struct {
	BaseURL    string
	APIKey     string
	Units      string
	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new weather API client
func NewClient(cfg config.WeatherConfig) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:  cfg.APIKey,
		Units:   cfg.Units,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// currentResponse represents the /weather response
type currentResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Name string `json:"name"`
}

// Fetch returns the current conditions for lat/lon
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (*Conditions, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	if c.Units != "" {
		params.Set("units", c.Units)
	}
	if c.APIKey != "" {
		params.Set("appid", c.APIKey)
	}

	data, err := c.get(ctx, c.BaseURL+"/weather?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp currentResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}

	cond := &Conditions{
		Temperature: resp.Main.Temp,
		FeelsLike:   resp.Main.FeelsLike,
		Humidity:    resp.Main.Humidity,
		WindSpeed:   resp.Wind.Speed,
		TempHigh:    resp.Main.TempMax,
		TempLow:     resp.Main.TempMin,
	}
	if len(resp.Weather) > 0 {
		cond.Description = resp.Weather[0].Description
		if cond.Description == "" {
			cond.Description = resp.Weather[0].Main
		}
	}

	return cond, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("weather rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API error: %d %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}
