package instrument

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a raw identifier.
type Kind int

const (
	KindNone Kind = iota
	KindISIN
	KindTicker
)

func (k Kind) String() string {
	switch k {
	case KindISIN:
		return "isin"
	case KindTicker:
		return "ticker"
	}
	return "none"
}

// isinRegex checks the basic structure: 2 letters, 9 alphanumeric, 1 digit.
var isinRegex = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// ValidateISIN checks the format and the check digit of an ISIN (ISO 6166).
func ValidateISIN(isin string) error {
	if len(isin) != 12 {
		return fmt.Errorf("invalid length: must be 12 characters, got %d", len(isin))
	}
	if !isinRegex.MatchString(isin) {
		return fmt.Errorf("invalid format: %q", isin)
	}

	// Letters expand to two digits (A=10 ... Z=35), then Luhn over the digit string.
	var digits strings.Builder
	for _, c := range isin[:11] {
		if c >= 'A' && c <= 'Z' {
			digits.WriteString(strconv.Itoa(int(c-'A') + 10))
		} else {
			digits.WriteRune(c)
		}
	}
	s := digits.String()
	sum := 0
	double := true
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	want := (10 - sum%10) % 10
	got, _ := strconv.Atoi(isin[11:])
	if got != want {
		return fmt.Errorf("invalid check digit for %q: got %d, want %d", isin, got, want)
	}
	return nil
}
