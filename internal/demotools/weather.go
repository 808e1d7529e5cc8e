package demotools

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/tool"
)

type weatherReport struct {
	Temp      int    `json:"temp"`
	Condition string `json:"condition"`
	Humidity  int    `json:"humidity"`
}

var weatherDB = map[string]weatherReport{
	"london":   {Temp: 15, Condition: "Rainy", Humidity: 80},
	"paris":    {Temp: 18, Condition: "Sunny", Humidity: 60},
	"new york": {Temp: 22, Condition: "Cloudy", Humidity: 70},
	"tokyo":    {Temp: 25, Condition: "Clear", Humidity: 55},
}

var forecastDB = map[string][]string{
	"london":   {"Rainy", "Cloudy", "Sunny", "Rainy", "Cloudy", "Sunny", "Rainy"},
	"paris":    {"Sunny", "Sunny", "Cloudy", "Rainy", "Sunny", "Sunny", "Cloudy"},
	"new york": {"Cloudy", "Rainy", "Sunny", "Sunny", "Cloudy", "Rainy", "Sunny"},
	"tokyo":    {"Clear", "Clear", "Cloudy", "Rainy", "Clear", "Clear", "Sunny"},
}

// WeatherArgs are the arguments of get_weather.
type WeatherArgs struct {
	City string `json:"city" description:"City name"`
}

// Weather reports current conditions for a city.
func Weather() tool.Tool {
	return tool.NewTypedTool("get_weather", "Gets current weather for a city",
		func(_ *core.ToolContext, args WeatherArgs) (any, error) {
			if r, ok := weatherDB[strings.ToLower(strings.TrimSpace(args.City))]; ok {
				return r, nil
			}
			return weatherReport{Temp: 20, Condition: "Unknown", Humidity: 65}, nil
		})
}

// Forecast reports the conditions of the next 1-7 days. Arguments are
// coerced loosely since models often send numbers as strings.
func Forecast() tool.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string", "description": "City name"},
			"days": map[string]any{"description": "Number of days (1-7)"},
		},
		"required": []string{"city", "days"},
	}
	return tool.NewFunctionTool("get_forecast", "Gets weather forecast for upcoming days", params,
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			city, err := cast.ToStringE(args["city"])
			if err != nil {
				return nil, fmt.Errorf("city: %w", err)
			}
			days, err := cast.ToIntE(args["days"])
			if err != nil {
				return nil, fmt.Errorf("days: %w", err)
			}
			if days < 1 || days > 7 {
				return nil, fmt.Errorf("days must be between 1 and 7, got %d", days)
			}

			forecast, ok := forecastDB[strings.ToLower(strings.TrimSpace(city))]
			if !ok {
				forecast = []string{"Unknown", "Unknown", "Unknown", "Unknown", "Unknown", "Unknown", "Unknown"}
			}
			return map[string]any{"city": city, "forecast": forecast[:days]}, nil
		})
}

// WeatherTools returns the weather capabilities.
func WeatherTools() []tool.Tool {
	return []tool.Tool{Weather(), Forecast()}
}
