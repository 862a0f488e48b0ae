package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Duration is a parsed wait/timeout duration. It is backed by time.Duration
// so arithmetic and comparisons work the same way.
type Duration time.Duration

// AsTimeDuration converts to the standard library type.
func (d Duration) AsTimeDuration() time.Duration { return time.Duration(d) }

// iso8601Pattern matches the restricted subset this engine accepts: a "P"
// prefix, a mandatory "T" introducing the time part, and any combination of
// H/M/S components with integer or decimal values. Date components (Y, M
// before T, W, D) are rejected by construction — the pattern has no slot
// for them.
var iso8601Pattern = regexp.MustCompile(`^P(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISO8601Duration parses the restricted ISO-8601 duration subset
// described in spec §6.5: "P" then "T" then any of H/M/S, each with an
// integer or decimal value. Whole-document date components are rejected.
// "PT0S" and "P" (no T part at all) both parse to a zero duration.
func ParseISO8601Duration(s string) (Duration, error) {
	m := iso8601Pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("workflow: %q is not a valid restricted ISO-8601 duration (date components are not supported)", s)
	}
	var total time.Duration
	if m[1] != "" {
		h, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("workflow: invalid hours component in %q: %w", s, err)
		}
		total += time.Duration(h * float64(time.Hour))
	}
	if m[2] != "" {
		mm, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return 0, fmt.Errorf("workflow: invalid minutes component in %q: %w", s, err)
		}
		total += time.Duration(mm * float64(time.Minute))
	}
	if m[3] != "" {
		sec, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			return 0, fmt.Errorf("workflow: invalid seconds component in %q: %w", s, err)
		}
		total += time.Duration(sec * float64(time.Second))
	}
	return Duration(total), nil
}

// InlineDuration is the alternative wait/timeout shape: an object with
// integer fields. Any subset may be supplied; omitted fields are zero.
type InlineDuration struct {
	Hours        int
	Minutes      int
	Seconds      int
	Milliseconds int
}

// ToDuration converts an inline duration object to Duration.
func (d InlineDuration) ToDuration() Duration {
	total := time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute +
		time.Duration(d.Seconds)*time.Second +
		time.Duration(d.Milliseconds)*time.Millisecond
	return Duration(total)
}
