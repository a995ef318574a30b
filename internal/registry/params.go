// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/pkg/types"
)

// freshnessSort is the ordering requested when no criteria are supplied.
const freshnessSort = "LastUpdatePostDate:desc"

// GeoFilter is a circular distance constraint around a resolved point.
type GeoFilter struct {
	Point    types.GeoPoint
	Distance types.Distance
}

// String renders the filter in the registry's filter.geo syntax,
// e.g. "distance(40.7128,-74.006,50mi)".
func (g GeoFilter) String() string {
	return fmt.Sprintf("distance(%s,%s,%s%s)",
		formatFloat(g.Point.Latitude),
		formatFloat(g.Point.Longitude),
		formatFloat(g.Distance.Radius),
		g.Distance.Unit)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// BuildParams builds the registry query for criteria. Keyword and phase are
// ANDed into one free-text term, status becomes an exact-match filter, and
// geo (when non-nil) adds a distance filter. Completely empty criteria
// request the freshness ordering instead.
func BuildParams(c types.SearchCriteria, geo *GeoFilter, defaultPageSize int) url.Values {
	params := url.Values{"format": {"json"}}

	var terms []string
	if kw := strings.TrimSpace(c.Keyword); kw != "" {
		terms = append(terms, kw)
	}
	if ph := strings.TrimSpace(c.Phase); ph != "" {
		terms = append(terms, ph)
	}
	if len(terms) > 0 {
		params.Set("query.term", strings.Join(terms, " AND "))
	}

	if st := strings.TrimSpace(c.Status); st != "" {
		params.Set("filter.overallStatus", st)
	}

	if geo != nil {
		params.Set("filter.geo", geo.String())
	}

	if c.IsEmpty() {
		params.Set("sort", freshnessSort)
	}

	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > 0 {
		params.Set("pageSize", strconv.Itoa(pageSize))
	}
	if c.PageToken != "" {
		params.Set("pageToken", c.PageToken)
	}

	return params
}

// unitAliases maps accepted unit suffixes to a unit. The empty suffix
// defaults to miles.
var unitAliases = map[string]types.DistanceUnit{
	"":           types.Miles,
	"mi":         types.Miles,
	"mile":       types.Miles,
	"miles":      types.Miles,
	"km":         types.Kilometers,
	"kms":        types.Kilometers,
	"kilometer":  types.Kilometers,
	"kilometers": types.Kilometers,
	"kilometre":  types.Kilometers,
	"kilometres": types.Kilometers,
}

// ParseDistance parses a radius with an optional unit suffix, such as
// "50mi", "80 km", or "25". A missing unit means miles. Input without a
// positive leading number, or with an unknown unit, fails with
// ErrInvalidInput.
func ParseDistance(s string) (types.Distance, error) {
	raw := strings.ToLower(strings.Join(strings.Fields(s), ""))
	if raw == "" {
		return types.Distance{}, errs.Invalid("distance", "must not be empty")
	}

	end := 0
	seenDot := false
	for end < len(raw) {
		ch := rune(raw[end])
		if ch == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		if !unicode.IsDigit(ch) {
			break
		}
		end++
	}

	radius, err := strconv.ParseFloat(raw[:end], 64)
	if err != nil {
		return types.Distance{}, errs.Invalid("distance", "%q has no numeric radius", s)
	}
	if radius <= 0 {
		return types.Distance{}, errs.Invalid("distance", "radius must be positive, got %q", s)
	}

	unit, ok := unitAliases[raw[end:]]
	if !ok {
		return types.Distance{}, errs.Invalid("distance", "unknown unit %q (use mi or km)", raw[end:])
	}
	return types.Distance{Radius: radius, Unit: unit}, nil
}
