package domain

// Weather is the current-conditions report returned by fetch-weather.
type Weather struct {
	City          string  `json:"city,omitempty"`
	ConditionMain string  `json:"condition_main"`
	ConditionDesc string  `json:"condition_desc"`
	Temp          float64 `json:"temp"`
	FeelsLike     float64 `json:"feels_like"`
	Humidity      int     `json:"humidity"`
	WindSpeed     float64 `json:"wind_speed"`
	Icon          string  `json:"icon"`
}
