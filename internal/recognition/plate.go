package recognition

import (
	"regexp"
	"strings"
)

// CountrySuffix is appended to recognized plates that lack it.
const CountrySuffix = "RB"

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]`)

// NormalizePlate uppercases a recognized plate and appends the country
// suffix when it is not already there.
func NormalizePlate(plate string) string {
	p := strings.ToUpper(strings.TrimSpace(plate))
	if p == "" {
		return ""
	}
	if !strings.HasSuffix(p, CountrySuffix) {
		p += CountrySuffix
	}
	return p
}

// SanitizeManual cleans a manually typed plate: uppercase, alphanumerics only.
func SanitizeManual(input string) string {
	return strings.ToUpper(nonAlnum.ReplaceAllString(input, ""))
}

// FormatCEDEAO inserts dashes into 6 or 7 character plates for display. A
// country suffix is split off first, so AB123CDRB gives "AB-123-CD RB".
// Other lengths are returned unchanged.
func FormatCEDEAO(plate string) string {
	clean := strings.ToUpper(nonAlnum.ReplaceAllString(plate, ""))
	suffix := ""
	if n := len(clean) - len(CountrySuffix); (n == 6 || n == 7) && strings.HasSuffix(clean, CountrySuffix) {
		clean, suffix = clean[:n], " "+CountrySuffix
	}
	if len(clean) != 6 && len(clean) != 7 {
		return plate
	}
	return clean[:2] + "-" + clean[2:5] + "-" + clean[5:] + suffix
}
