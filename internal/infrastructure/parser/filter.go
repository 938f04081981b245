package parser

import "strings"

// Company-name prefixes of non-equity issuers (ETFs, infrastructure funds,
// REITs). Matched as prefixes only.
var excludedNamePrefixes = []string{"Ｅ－", "Ｐ－", "Ｒ－"}

const (
	listedTrustMarker  = "上場投信"
	fullWidthETFMarker = "ＥＴＦ"
	asciiETFMarker     = "ETF"
	listedETNMarker    = "上場ETN"
	correctionMarker   = "訂正"
)

// excludedByName reports whether company is issued by a non-equity
// instrument and returns the matching prefix.
func excludedByName(company string) (string, bool) {
	for _, prefix := range excludedNamePrefixes {
		if strings.HasPrefix(company, prefix) {
			return prefix, true
		}
	}
	return "", false
}

// excludedByTitle reports whether title announces a fund product or is a
// correction of an earlier filing.
func excludedByTitle(title string) (string, bool) {
	upper := strings.ToUpper(title)

	switch {
	case strings.Contains(title, listedTrustMarker):
		return listedTrustMarker, true
	case strings.Contains(upper, fullWidthETFMarker):
		return fullWidthETFMarker, true
	case strings.Contains(upper, asciiETFMarker):
		return asciiETFMarker, true
	case strings.Contains(title, listedETNMarker):
		return listedETNMarker, true
	case strings.Contains(title, correctionMarker):
		return correctionMarker, true
	}
	return "", false
}
