// Package render turns normalized provider data into the rows, metric cards
// and chart series the dashboard draws. It holds no business logic beyond
// column selection and formatting.
package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/smartcity/assistant/internal/domain"
	"github.com/smartcity/assistant/pkg/utils"
)

// displayDateLayout renders forecast days as "Monday, January, 02".
const displayDateLayout = "Monday, January, 02"

// Chart series names.
const (
	SeriesMinTemp   = "Min Temp (°C)"
	SeriesMaxTemp   = "Max Temp (°C)"
	SeriesHumidity  = "Humidity (%)"
	SeriesWindSpeed = "Wind Speed (m/s)"
)

// MetricCard is a single labelled value
type MetricCard struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ForecastRow is one line of the daily forecast table
type ForecastRow struct {
	Day         string `json:"day"`
	Date        string `json:"date"`
	Description string `json:"description"`
	MinTemp     string `json:"min_temp"`
	MaxTemp     string `json:"max_temp"`
}

// Point is one folded chart datum: the value of series Type on Date
type Point struct {
	Date  string  `json:"date"`
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// Chart is a multi-series line chart with a temporal x axis
type Chart struct {
	Title  string  `json:"title"`
	YLabel string  `json:"y_label"`
	Points []Point `json:"points"`
}

// WeatherView is the rendered weather module
type WeatherView struct {
	Location          domain.Location          `json:"location"`
	Current           []MetricCard             `json:"current"`
	Conditions        domain.CurrentConditions `json:"conditions"`
	Forecast          []ForecastRow            `json:"forecast"`
	TemperatureChart  Chart                    `json:"temperature_chart"`
	HumidityWindChart Chart                    `json:"humidity_wind_chart"`
	Summary           string                   `json:"summary,omitempty"`
	Notices           []string                 `json:"notices,omitempty"`
	// ForecastError is set when the forecast could not be fetched.
	ForecastError *SectionError `json:"forecast_error,omitempty"`
}

// SectionError describes why one part of a report is missing
type SectionError struct {
	Kind     string `json:"kind"`
	Provider string `json:"provider,omitempty"`
	Message  string `json:"message"`
}

// NewSectionError classifies err for a report section
func NewSectionError(err error) *SectionError {
	return &SectionError{
		Kind:     domain.ErrorKind(err),
		Provider: domain.ErrorProvider(err),
		Message:  err.Error(),
	}
}

// PollutantRow is one pollutant concentration
type PollutantRow struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"`
}

// AirQualityView is the rendered air quality module
type AirQualityView struct {
	Location   domain.Location `json:"location"`
	AQI        int             `json:"aqi"`
	Label      string          `json:"label"`
	Card       MetricCard      `json:"card"`
	Pollutants []PollutantRow  `json:"pollutants"`
}

// TrafficView is the rendered traffic module
type TrafficView struct {
	Location        domain.Location      `json:"location"`
	Sample          domain.TrafficSample `json:"sample"`
	Cards           []MetricCard         `json:"cards"`
	CongestionRatio *float64             `json:"congestion_ratio"`
	CongestionLevel string               `json:"congestion_level,omitempty"`
	Notice          string               `json:"notice,omitempty"`
}

// Weather renders current conditions plus a day-deduplicated forecast.
// daily is expected to hold at most one entry per date.
func Weather(loc domain.Location, current domain.CurrentConditions, daily []domain.ForecastEntry) WeatherView {
	view := WeatherView{
		Location:   loc,
		Conditions: current,
		Current: []MetricCard{
			{Label: "Temperature", Value: fmt.Sprintf("%.2f°C", current.Temperature)},
			{Label: "Humidity", Value: fmt.Sprintf("%d%%", current.Humidity)},
			{Label: "Pressure", Value: fmt.Sprintf("%d hPa", current.Pressure)},
			{Label: "Wind Speed", Value: formatFloat(current.WindSpeed) + " m/s"},
		},
		Forecast: ForecastRows(daily),
	}
	view.TemperatureChart, view.HumidityWindChart = ForecastCharts(daily)
	return view
}

// ForecastRows builds the daily forecast table
func ForecastRows(daily []domain.ForecastEntry) []ForecastRow {
	rows := make([]ForecastRow, 0, len(daily))
	for _, e := range daily {
		key := e.DayKey()
		day := e.Timestamp.UTC()
		if t, err := time.Parse(domain.DateLayout, key); err == nil {
			day = t
		}
		rows = append(rows, ForecastRow{
			Day:         day.Format(displayDateLayout),
			Date:        key,
			Description: Capitalize(e.Description),
			MinTemp:     fmt.Sprintf("%.1f°C", e.MinTemp),
			MaxTemp:     fmt.Sprintf("%.1f°C", e.MaxTemp),
		})
	}
	return rows
}

// ForecastCharts builds the temperature band and humidity/wind charts
func ForecastCharts(daily []domain.ForecastEntry) (temperature, humidityWind Chart) {
	temperature = Chart{Title: "Temperature Forecast", YLabel: "Temperature", Points: make([]Point, 0, 2*len(daily))}
	humidityWind = Chart{Title: "Humidity & Wind Speed Forecast", YLabel: "Value", Points: make([]Point, 0, 2*len(daily))}

	for _, e := range daily {
		date := e.DayKey()
		temperature.Points = append(temperature.Points,
			Point{Date: date, Type: SeriesMinTemp, Value: utils.RoundTo(e.MinTemp, 2)},
			Point{Date: date, Type: SeriesMaxTemp, Value: utils.RoundTo(e.MaxTemp, 2)},
		)
		humidityWind.Points = append(humidityWind.Points,
			Point{Date: date, Type: SeriesHumidity, Value: float64(e.Humidity)},
			Point{Date: date, Type: SeriesWindSpeed, Value: utils.RoundTo(e.WindSpeed, 2)},
		)
	}
	return temperature, humidityWind
}

// AirQuality renders the AQI card and pollutant list, sorted by symbol
func AirQuality(loc domain.Location, aq domain.AirQuality) AirQualityView {
	label := aq.Label()

	pollutants := make([]PollutantRow, 0, len(aq.Pollutants))
	for symbol, value := range aq.Pollutants {
		pollutants = append(pollutants, PollutantRow{Symbol: strings.ToUpper(symbol), Value: value})
	}
	sort.Slice(pollutants, func(i, j int) bool { return pollutants[i].Symbol < pollutants[j].Symbol })

	return AirQualityView{
		Location:   loc,
		AQI:        aq.AQI,
		Label:      label,
		Card:       MetricCard{Label: "AQI Level", Value: fmt.Sprintf("%d - %s", aq.AQI, label)},
		Pollutants: pollutants,
	}
}

// Traffic renders speeds and the congestion ratio. An undefined ratio is
// reported as a notice instead of a number.
func Traffic(loc domain.Location, sample domain.TrafficSample) TrafficView {
	view := TrafficView{
		Location: loc,
		Sample:   sample,
		Cards: []MetricCard{
			{Label: "Current Speed", Value: formatFloat(sample.CurrentSpeed) + " km/h"},
			{Label: "Free Flow Speed", Value: formatFloat(sample.FreeFlowSpeed) + " km/h"},
		},
	}

	ratio, err := sample.CongestionRatio()
	if err != nil {
		view.Notice = err.Error()
		view.Cards = append(view.Cards, MetricCard{Label: "Congestion Ratio", Value: "unavailable"})
		return view
	}

	view.CongestionRatio = &ratio
	view.CongestionLevel = domain.CongestionLevel(ratio)
	view.Cards = append(view.Cards, MetricCard{Label: "Congestion Ratio", Value: fmt.Sprintf("%.2f", ratio)})
	return view
}

// Capitalize upper-cases the first letter and lower-cases the rest
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
