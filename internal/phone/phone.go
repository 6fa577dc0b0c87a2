// Package phone canonicalizes phone numbers to E.164.
package phone

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers without a country code.
const DefaultRegion = "US"

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Normalizer converts raw user or provider input into E.164.
type Normalizer struct {
	region string
}

// NewNormalizer creates a Normalizer. An empty region falls back to DefaultRegion.
func NewNormalizer(region string) *Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return &Normalizer{region: region}
}

// Normalize returns the E.164 form of raw, or false if raw is not a valid number.
//
// Providers such as Vonage deliver msisdn values without a leading '+'
// ("15551234567"), so a bare digit string that parses as a valid international
// number is accepted before falling back to the default region.
func (n *Normalizer) Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if !strings.HasPrefix(raw, "+") && isDigits(raw) && len(raw) > 10 {
		if e164, ok := n.parse("+"+raw, ""); ok {
			return e164, true
		}
	}

	return n.parse(raw, n.region)
}

func (n *Normalizer) parse(raw, region string) (string, bool) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", false
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// IsE164 reports whether s is already in E.164 form.
func IsE164(s string) bool {
	return e164Pattern.MatchString(s)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
