package clients

import (
	"fmt"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// NormalizePhone parses a raw phone number against the default region and
// returns its E.164 form. Numbers entered with a country prefix override
// the region.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: phone required", ErrInvalidClient)
	}
	parsed, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidClient, err)
	}
	if !libphonenumber.IsValidNumber(parsed) {
		return "", fmt.Errorf("%w: phone number is not valid", ErrInvalidClient)
	}
	return libphonenumber.Format(parsed, libphonenumber.E164), nil
}
