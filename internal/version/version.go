package version

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
)

// Valid field ranges.
const (
	MinYear = 2020
	MaxYear = 2100
)

// tagPattern is the only accepted tag shape.
var tagPattern = regexp.MustCompile(`^v(\d{4})\.(\d{1,2})\.(\d{1,2})-r(\d+)$`)

// Version is a parsed release tag.
type Version struct {
	Year     int    `json:"year"`
	Month    int    `json:"month"`
	Day      int    `json:"day"`
	Revision int    `json:"revision"`
	Raw      string `json:"raw"`
}

// String returns the raw tag, or the canonical rendering when the version
// was built by hand.
func (v Version) String() string {
	if v.Raw != "" {
		return v.Raw
	}
	return fmt.Sprintf("v%d.%d.%d-r%d", v.Year, v.Month, v.Day, v.Revision)
}

// ValidationError reports a tag that cannot be parsed or a request that
// has no valid answer (such as the latest of zero versions).
type ValidationError struct {
	Input   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("invalid version %q: %s", e.Input, e.Message)
	}
	return fmt.Sprintf("invalid version: %s", e.Message)
}

// Parse parses a tag of the form v<year>.<month>.<day>-r<revision>.
func Parse(raw string) (Version, error) {
	m := tagPattern.FindStringSubmatch(raw)
	if m == nil {
		return Version{}, &ValidationError{Input: raw, Message: "expected v<year>.<month>.<day>-r<revision>"}
	}

	fields := make([]int, 4)
	for i := range fields {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Version{}, &ValidationError{Input: raw, Message: err.Error()}
		}
		fields[i] = n
	}

	v := Version{Year: fields[0], Month: fields[1], Day: fields[2], Revision: fields[3], Raw: raw}
	if err := v.validate(); err != nil {
		return Version{}, err
	}
	return v, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for compile-time constants.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) validate() error {
	switch {
	case v.Year < MinYear || v.Year > MaxYear:
		return &ValidationError{Input: v.Raw, Message: fmt.Sprintf("year %d outside [%d, %d]", v.Year, MinYear, MaxYear)}
	case v.Month < 1 || v.Month > 12:
		return &ValidationError{Input: v.Raw, Message: fmt.Sprintf("month %d outside [1, 12]", v.Month)}
	case v.Day < 1 || v.Day > 31:
		return &ValidationError{Input: v.Raw, Message: fmt.Sprintf("day %d outside [1, 31]", v.Day)}
	case v.Revision < 1:
		return &ValidationError{Input: v.Raw, Message: fmt.Sprintf("revision %d must be >= 1", v.Revision)}
	}
	return nil
}

// Compare returns -1, 0 or 1 ordering a against b by
// (year, month, day, revision).
func Compare(a, b Version) int {
	pairs := [4][2]int{
		{a.Year, b.Year},
		{a.Month, b.Month},
		{a.Day, b.Day},
		{a.Revision, b.Revision},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// IsNewer reports whether a sorts strictly after b.
func IsNewer(a, b Version) bool { return Compare(a, b) > 0 }

// IsOlder reports whether a sorts strictly before b.
func IsOlder(a, b Version) bool { return Compare(a, b) < 0 }

// IsEqual reports whether a and b have identical fields.
func IsEqual(a, b Version) bool { return Compare(a, b) == 0 }

// Latest returns the newest version in versions.
func Latest(versions []Version) (Version, error) {
	if len(versions) == 0 {
		return Version{}, &ValidationError{Message: "cannot select latest of an empty version list"}
	}
	latest := versions[0]
	for _, v := range versions[1:] {
		if IsNewer(v, latest) {
			latest = v
		}
	}
	return latest, nil
}

// SortOldestFirst returns a stably sorted copy of versions, oldest first.
func SortOldestFirst(versions []Version) []Version {
	sorted := slices.Clone(versions)
	slices.SortStableFunc(sorted, Compare)
	return sorted
}

// SortNewestFirst returns a stably sorted copy of versions, newest first.
func SortNewestFirst(versions []Version) []Version {
	sorted := slices.Clone(versions)
	slices.SortStableFunc(sorted, func(a, b Version) int {
		return Compare(b, a)
	})
	return sorted
}
