package extractors

import (
	"fmt"
	"math"
)

// Action is one build order entry ready to be stored.
type Action struct {
	Player        int
	ActionName    string
	UnitType      *string
	Timestamp     float64
	OrderIndex    int
	FormattedTime string
}

// FormatTimestamp renders game seconds as MM:SS, truncating fractions.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func stringPtr(s string) *string {
	return &s
}
