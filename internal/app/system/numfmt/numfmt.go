// Package numfmt formats numbers and chart summaries for the caller's locale.
package numfmt

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/dalemusser/stratatrack/internal/domain/series"
)

// Supported lists the locales summaries are formatted in. The first entry is
// the fallback.
var Supported = []language.Tag{
	language.English,
	language.French,
	language.Spanish,
	language.Portuguese,
	language.German,
}

var matcher = language.NewMatcher(Supported)

const maxFractionDigits = 3

// Negotiate picks the supported locale that best matches an Accept-Language
// header. Malformed or empty headers get the fallback.
func Negotiate(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Supported[0]
	}
	_, index, _ := matcher.Match(tags...)
	return Supported[index]
}

// Number formats v with locale grouping and at most three fraction digits.
func Number(tag language.Tag, v float64) string {
	p := message.NewPrinter(tag)
	return p.Sprint(number.Decimal(v, number.MaxFractionDigits(maxFractionDigits)))
}

// Trend values reported alongside the progress text.
const (
	TrendUp   = "up"
	TrendDown = "down"
)

// SummaryText is the human-readable form of a series.Summary.
type SummaryText struct {
	Progress string `json:"progress"`
	Range    string `json:"range"`
	Trend    string `json:"trend,omitempty"`
}

// Summary renders sum as "first → last (delta%)" and "min: x - max: y".
// The delta part and the trend are left out when the delta is undefined.
func Summary(tag language.Tag, sum series.Summary) SummaryText {
	out := SummaryText{
		Progress: Number(tag, sum.First) + " → " + Number(tag, sum.Last),
		Range:    "min: " + Number(tag, sum.Min) + " - max: " + Number(tag, sum.Max),
	}
	if sum.DeltaPercent != nil {
		d := *sum.DeltaPercent
		out.Progress += " (" + Number(tag, d) + "%)"
		if d > 0 {
			out.Trend = TrendUp
		} else {
			out.Trend = TrendDown
		}
	}
	return out
}
