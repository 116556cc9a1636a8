package archive

import (
	"math"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var (
	orderPattern = regexp.MustCompile(`(?i)(chapter|ch|page|p|pg)?[\s_-]*(\d+(\.\d+)?)`)
	nonNumeric   = regexp.MustCompile(`[^\d.]`)
)

// OrderKey derives the numeric ordering key of a name. Names without a
// recognisable number map to +Inf so they sort last.
func OrderKey(name string) float64 {
	if m := orderPattern.FindStringSubmatch(name); m != nil {
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			return v
		}
	}

	if v, err := strconv.ParseFloat(nonNumeric.ReplaceAllString(name, ""), 64); err == nil {
		return v
	}

	return math.Inf(1)
}

// fileKey is OrderKey applied to a file's base name without its extension.
func fileKey(p string) float64 {
	base := path.Base(p)
	return OrderKey(strings.TrimSuffix(base, path.Ext(base)))
}
