package resolver

import "strings"

// Theme keys derived from the primary weather condition.
const (
	ThemeClear        = "clear"
	ThemeClouds       = "clouds"
	ThemeRain         = "rain"
	ThemeThunderstorm = "thunderstorm"
	ThemeDefault      = "default"
)

// ThemeFor maps a condition category such as "Clouds" to a theme key,
// case-insensitively. Anything outside the known set maps to ThemeDefault.
func ThemeFor(condition string) string {
	switch strings.ToLower(strings.TrimSpace(condition)) {
	case ThemeClear:
		return ThemeClear
	case ThemeClouds:
		return ThemeClouds
	case ThemeRain:
		return ThemeRain
	case ThemeThunderstorm:
		return ThemeThunderstorm
	default:
		return ThemeDefault
	}
}
