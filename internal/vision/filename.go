package vision

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var (
	hexHashPattern    = regexp.MustCompile(`(?i)^[0-9a-f]{8,}$`)
	uuidPrefixPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-`)
	letterWordPattern = regexp.MustCompile(`\pL{3,}`)
)

// IsGibberishFilename reports whether a file name carries no usable title:
// a hex hash, a UUID, fewer than four characters, or mostly digits with no
// word of three or more letters.
func IsGibberishFilename(name string) bool {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSpace(base)
	if len([]rune(base)) < 4 {
		return true
	}
	if hexHashPattern.MatchString(base) || uuidPrefixPattern.MatchString(base) {
		return true
	}
	var digits, total int
	for _, r := range base {
		total++
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if float64(digits)/float64(total) > 0.6 && !letterWordPattern.MatchString(base) {
		return true
	}
	return false
}
