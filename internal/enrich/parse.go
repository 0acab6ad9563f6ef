package enrich

import (
	"fmt"
	"strings"

	"github.com/fuelmap-ja/stations-cli/internal/model"
	"github.com/fuelmap-ja/stations-cli/pkg/places"
)

// ParseError means a provider response was received but unusable. The
// record degrades to fallback; the run continues.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse: " + e.Reason
}

func newParseError(format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// weekdays is the canonical day order a complete schedule must cover.
var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// ParseResponse extracts a validated Enrichment from a provider response.
//
// The first candidate wins. Multiple similarly-named businesses can cause
// mismatches; correct matching criteria were never defined upstream, so no
// disambiguation is attempted.
//
// Individual fields that fail validation are dropped rather than failing
// the record: out-of-bounds coordinates, incomplete weekly hours, and
// unparseable phone numbers all come back absent. Only an empty or missing
// candidate list is a ParseError.
func ParseResponse(resp *places.TextSearchResponse, bounds model.Bounds, wantPhoto bool) (*model.Enrichment, error) {
	if resp == nil || len(resp.Places) == 0 {
		return nil, newParseError("provider returned no candidates")
	}
	first := resp.Places[0]

	enr := &model.Enrichment{}

	if first.Location != nil && bounds.Contains(first.Location.Latitude, first.Location.Longitude) {
		lat, lng := first.Location.Latitude, first.Location.Longitude
		enr.Latitude = &lat
		enr.Longitude = &lng
	}

	phone := first.InternationalPhone
	if phone == "" {
		phone = first.NationalPhone
	}
	enr.Phone = NormalizePhone(phone)

	if first.OpeningHours != nil {
		enr.Hours = parseWeeklyHours(first.OpeningHours.WeekdayDescriptions)
	}

	if first.Rating >= 0 && first.Rating <= 5 {
		enr.Rating = first.Rating
	}
	if first.UserRatingCount > 0 {
		enr.ReviewCount = first.UserRatingCount
	}

	if wantPhoto && len(first.Photos) > 0 {
		enr.ThumbnailRef = first.Photos[0].Name
	}

	// Latitude and longitude are set together above or not at all; nothing
	// downstream may break that pairing.
	return enr, nil
}

// parseWeeklyHours validates a weekly schedule all-or-nothing: exactly
// seven "Day: hours" lines, one per day, each day unique. Anything less
// drops the whole field.
func parseWeeklyHours(descriptions []string) []model.OpeningHours {
	if len(descriptions) != 7 {
		return nil
	}

	byDay := make(map[string]string, 7)
	for _, desc := range descriptions {
		day, hours, ok := strings.Cut(desc, ":")
		if !ok {
			return nil
		}
		day = strings.TrimSpace(day)
		if !isWeekday(day) {
			return nil
		}
		if _, dup := byDay[day]; dup {
			return nil
		}
		byDay[day] = strings.TrimSpace(hours)
	}
	if len(byDay) != 7 {
		return nil
	}

	out := make([]model.OpeningHours, 0, 7)
	for _, day := range weekdays {
		out = append(out, model.OpeningHours{Day: day, Hours: byDay[day]})
	}
	return out
}

func isWeekday(day string) bool {
	for _, d := range weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// NormalizePhone canonicalizes a Jamaican phone number to +1876XXXXXXX
// (or +1658 for the overlay area code). Unparseable input returns "".
func NormalizePhone(raw string) string {
	digits := keepDigits(raw)
	switch {
	case len(digits) == 7:
		return "+1876" + digits
	case len(digits) == 10 && (strings.HasPrefix(digits, "876") || strings.HasPrefix(digits, "658")):
		return "+1" + digits
	case len(digits) == 11 && (strings.HasPrefix(digits, "1876") || strings.HasPrefix(digits, "1658")):
		return "+" + digits
	default:
		return ""
	}
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
