package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smartcity/assistant/internal/domain"
)

// ProviderOpenWeatherMap names the weather, forecast and air pollution provider
const ProviderOpenWeatherMap = "openweathermap"

// WeatherService talks to OpenWeatherMap. It resolves locations, fetches
// forecasts and air pollution readings; all three share one API key.
type WeatherService struct {
	apiKey string
	client *providerClient
}

// NewWeatherService creates a new weather service
func NewWeatherService(apiKey string, opts ProviderOptions) *WeatherService {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openweathermap.org/data/2.5"
	}
	return &WeatherService{
		apiKey: apiKey,
		client: newProviderClient(ProviderOpenWeatherMap, opts),
	}
}

// Provider response shapes. Required fields are pointers so an absent field
// can be told apart from a zero value.

type owmCurrentResponse struct {
	Cod     responseCode `json:"cod"`
	Message string       `json:"message"`
	Name    string       `json:"name"`
	Coord   *struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	} `json:"coord"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *int     `json:"humidity"`
		Pressure *int     `json:"pressure"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
}

type owmForecastResponse struct {
	Cod  responseCode       `json:"cod"`
	List *[]owmForecastItem `json:"list"`
}

type owmForecastItem struct {
	Dt    int64  `json:"dt"`
	DtTxt string `json:"dt_txt"`
	Main  *struct {
		Temp     *float64 `json:"temp"`
		TempMin  *float64 `json:"temp_min"`
		TempMax  *float64 `json:"temp_max"`
		Humidity *int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
}

type owmAirPollutionResponse struct {
	List []struct {
		Main *struct {
			AQI *int `json:"aqi"`
		} `json:"main"`
		Components map[string]*float64 `json:"components"`
	} `json:"list"`
}

// ResolveLocation looks the city up on the current-conditions endpoint and
// returns its coordinates together with the conditions from the same response.
func (s *WeatherService) ResolveLocation(ctx context.Context, city string) (domain.Location, domain.CurrentConditions, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return domain.Location{}, domain.CurrentConditions{}, fmt.Errorf("weather: city name is required: %w", domain.ErrInvalidInput)
	}
	if s.apiKey == "" {
		return domain.Location{}, domain.CurrentConditions{}, &domain.FetchError{Provider: ProviderOpenWeatherMap, Err: errMissingAPIKey}
	}

	params := url.Values{}
	params.Set("q", city)
	params.Set("appid", s.apiKey)

	var resp owmCurrentResponse
	if err := s.client.getJSON(ctx, "/weather", params, &resp); err != nil {
		var fetchErr *domain.FetchError
		if errors.As(err, &fetchErr) && fetchErr.StatusCode == http.StatusNotFound {
			return domain.Location{}, domain.CurrentConditions{}, fmt.Errorf("weather: %q: %w", city, domain.ErrLocationNotFound)
		}
		return domain.Location{}, domain.CurrentConditions{}, fmt.Errorf("weather: failed to resolve %q: %w", city, err)
	}
	if resp.Cod == http.StatusNotFound {
		return domain.Location{}, domain.CurrentConditions{}, fmt.Errorf("weather: %q: %w", city, domain.ErrLocationNotFound)
	}

	return s.extractCurrent(city, resp)
}

func (s *WeatherService) extractCurrent(city string, resp owmCurrentResponse) (domain.Location, domain.CurrentConditions, error) {
	switch {
	case resp.Coord == nil || resp.Coord.Lat == nil:
		return domain.Location{}, domain.CurrentConditions{}, s.client.malformed("coord.lat")
	case resp.Coord.Lon == nil:
		return domain.Location{}, domain.CurrentConditions{}, s.client.malformed("coord.lon")
	case resp.Main == nil || resp.Main.Temp == nil:
		return domain.Location{}, domain.CurrentConditions{}, s.client.malformed("main.temp")
	case resp.Main.Humidity == nil:
		return domain.Location{}, domain.CurrentConditions{}, s.client.malformed("main.humidity")
	case resp.Main.Pressure == nil:
		return domain.Location{}, domain.CurrentConditions{}, s.client.malformed("main.pressure")
	case resp.Wind == nil || resp.Wind.Speed == nil:
		return domain.Location{}, domain.CurrentConditions{}, s.client.malformed("wind.speed")
	}

	name := resp.Name
	if name == "" {
		name = city
	}

	loc := domain.Location{
		City:      name,
		Country:   resp.Sys.Country,
		Latitude:  *resp.Coord.Lat,
		Longitude: *resp.Coord.Lon,
	}
	current := domain.CurrentConditions{
		Temperature: domain.KelvinToCelsius(*resp.Main.Temp),
		Humidity:    *resp.Main.Humidity,
		Pressure:    *resp.Main.Pressure,
		WindSpeed:   *resp.Wind.Speed,
	}
	if len(resp.Weather) > 0 {
		current.Description = resp.Weather[0].Description
	}

	return loc, current, nil
}

// FetchForecast returns the 5-day forecast at 3-hour resolution, in arrival order
func (s *WeatherService) FetchForecast(ctx context.Context, loc domain.Location) ([]domain.ForecastEntry, error) {
	if s.apiKey == "" {
		return nil, &domain.FetchError{Provider: ProviderOpenWeatherMap, Err: errMissingAPIKey}
	}

	params := s.coordParams(loc)

	var resp owmForecastResponse
	if err := s.client.getJSON(ctx, "/forecast", params, &resp); err != nil {
		return nil, fmt.Errorf("weather: failed to fetch forecast: %w", err)
	}
	if resp.List == nil {
		return nil, s.client.malformed("list")
	}

	entries := make([]domain.ForecastEntry, 0, len(*resp.List))
	for i, item := range *resp.List {
		entry, field := forecastEntry(item)
		if field != "" {
			return nil, s.client.malformed(fmt.Sprintf("list[%d].%s", i, field))
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// forecastEntry converts one interval, or names the first missing field
func forecastEntry(item owmForecastItem) (domain.ForecastEntry, string) {
	switch {
	case item.Main == nil || item.Main.TempMin == nil:
		return domain.ForecastEntry{}, "main.temp_min"
	case item.Main.TempMax == nil:
		return domain.ForecastEntry{}, "main.temp_max"
	case item.Main.Humidity == nil:
		return domain.ForecastEntry{}, "main.humidity"
	case len(item.Weather) == 0:
		return domain.ForecastEntry{}, "weather[0].description"
	case item.Wind == nil || item.Wind.Speed == nil:
		return domain.ForecastEntry{}, "wind.speed"
	}

	ts := time.Unix(item.Dt, 0).UTC()
	date := ts.Format(domain.DateLayout)
	// dt_txt is "2006-01-02 15:04:05" in the provider's reporting zone
	if day, _, ok := strings.Cut(item.DtTxt, " "); ok && day != "" {
		date = day
	}

	entry := domain.ForecastEntry{
		Timestamp:   ts,
		Date:        date,
		MinTemp:     domain.KelvinToCelsius(*item.Main.TempMin),
		MaxTemp:     domain.KelvinToCelsius(*item.Main.TempMax),
		Humidity:    *item.Main.Humidity,
		WindSpeed:   *item.Wind.Speed,
		Description: item.Weather[0].Description,
	}
	if item.Main.Temp != nil {
		entry.Temperature = domain.KelvinToCelsius(*item.Main.Temp)
	} else {
		entry.Temperature = (entry.MinTemp + entry.MaxTemp) / 2
	}
	return entry, ""
}

// FetchAirQuality returns the current air pollution reading
func (s *WeatherService) FetchAirQuality(ctx context.Context, loc domain.Location) (domain.AirQuality, error) {
	if s.apiKey == "" {
		return domain.AirQuality{}, &domain.FetchError{Provider: ProviderOpenWeatherMap, Err: errMissingAPIKey}
	}

	var resp owmAirPollutionResponse
	if err := s.client.getJSON(ctx, "/air_pollution", s.coordParams(loc), &resp); err != nil {
		return domain.AirQuality{}, fmt.Errorf("weather: failed to fetch air pollution: %w", err)
	}

	if len(resp.List) == 0 {
		return domain.AirQuality{}, s.client.malformed("list[0]")
	}
	first := resp.List[0]
	if first.Main == nil || first.Main.AQI == nil {
		return domain.AirQuality{}, s.client.malformed("list[0].main.aqi")
	}

	pollutants := make(map[string]float64, len(first.Components))
	for symbol, value := range first.Components {
		if value != nil {
			pollutants[symbol] = *value
		}
	}

	return domain.AirQuality{AQI: *first.Main.AQI, Pollutants: pollutants}, nil
}

func (s *WeatherService) coordParams(loc domain.Location) url.Values {
	params := url.Values{}
	params.Set("lat", formatCoord(loc.Latitude))
	params.Set("lon", formatCoord(loc.Longitude))
	params.Set("appid", s.apiKey)
	return params
}

var (
	_ domain.LocationResolver  = (*WeatherService)(nil)
	_ domain.ForecastFetcher   = (*WeatherService)(nil)
	_ domain.AirQualityFetcher = (*WeatherService)(nil)
)
