package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// QuarterKey identifies a calendar quarter in YYYY-Qn form.
type QuarterKey struct {
	Year    int
	Quarter int
}

// QuarterOf returns the calendar quarter containing t.
func QuarterOf(t time.Time) QuarterKey {
	return QuarterKey{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// ParseQuarterKey parses "2024-Q3". Lowercase q is accepted.
func ParseQuarterKey(s string) (QuarterKey, error) {
	year, q, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(s)), "-Q")
	if !ok {
		return QuarterKey{}, eris.Errorf("quarter: invalid key %q", s)
	}
	y, err := strconv.Atoi(year)
	if err != nil || len(year) != 4 {
		return QuarterKey{}, eris.Errorf("quarter: invalid year in %q", s)
	}
	n, err := strconv.Atoi(q)
	if err != nil || n < 1 || n > 4 {
		return QuarterKey{}, eris.Errorf("quarter: invalid quarter in %q", s)
	}
	return QuarterKey{Year: y, Quarter: n}, nil
}

func (q QuarterKey) String() string {
	return fmt.Sprintf("%04d-Q%d", q.Year, q.Quarter)
}

// IsZero reports whether q is unset.
func (q QuarterKey) IsZero() bool { return q.Year == 0 && q.Quarter == 0 }

// Prev returns the preceding quarter.
func (q QuarterKey) Prev() QuarterKey {
	if q.Quarter == 1 {
		return QuarterKey{Year: q.Year - 1, Quarter: 4}
	}
	return QuarterKey{Year: q.Year, Quarter: q.Quarter - 1}
}

// Next returns the following quarter.
func (q QuarterKey) Next() QuarterKey {
	if q.Quarter == 4 {
		return QuarterKey{Year: q.Year + 1, Quarter: 1}
	}
	return QuarterKey{Year: q.Year, Quarter: q.Quarter + 1}
}

// Before reports whether q is strictly earlier than o.
func (q QuarterKey) Before(o QuarterKey) bool {
	return q.Compare(o) < 0
}

// Compare returns -1, 0 or 1.
func (q QuarterKey) Compare(o QuarterKey) int {
	switch {
	case q.Year != o.Year:
		if q.Year < o.Year {
			return -1
		}
		return 1
	case q.Quarter != o.Quarter:
		if q.Quarter < o.Quarter {
			return -1
		}
		return 1
	}
	return 0
}

// MarshalText encodes the key as YYYY-Qn.
func (q QuarterKey) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText decodes a YYYY-Qn key.
func (q *QuarterKey) UnmarshalText(b []byte) error {
	k, err := ParseQuarterKey(string(b))
	if err != nil {
		return err
	}
	*q = k
	return nil
}

// SortQuarters sorts keys ascending in place.
func SortQuarters(keys []QuarterKey) {
	slices.SortFunc(keys, QuarterKey.Compare)
}
