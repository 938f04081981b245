// Package naming derives the on-disk names of downloaded disclosure documents.
package naming

import (
	"strings"
	"time"
	"unicode/utf8"

	"TdnetDownloader/internal/domain"
)

// Ellipsis marks a truncated field.
const Ellipsis = "…"

// Each forbidden character maps to its own full-width look-alike. None of the
// replacements is itself forbidden, so Sanitize is idempotent.
var forbidden = strings.NewReplacer(
	`\`, "＼",
	"/", "／",
	":", "：",
	"*", "＊",
	"?", "？",
	`"`, "”",
	"<", "＜",
	">", "＞",
	"|", "｜",
)

// Sanitize replaces characters that Windows and most network filesystems
// reject in file names.
func Sanitize(name string) string {
	return forbidden.Replace(name)
}

// Truncate keeps at most max runes of s and appends Ellipsis when it cut
// anything. max <= 0 disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + Ellipsis
}

// MaxFileNameBytes is the name length limit of ext4 and most POSIX
// filesystems, counted in bytes rather than runes.
const MaxFileNameBytes = 255

// Policy bounds field lengths and fixes the separator and extension.
// MaxBytes caps the encoded length of the final name; 0 disables the cap.
type Policy struct {
	NameMaxRunes  int
	TitleMaxRunes int
	MaxBytes      int
	Separator     string
	Extension     string
}

// DefaultPolicy matches the defaults of the config package.
func DefaultPolicy() Policy {
	return Policy{
		NameMaxRunes:  40,
		TitleMaxRunes: 100,
		MaxBytes:      MaxFileNameBytes,
		Separator:     "_",
		Extension:     ".pdf",
	}
}

// FileName composes "{YYYYMMDD}{time}_{code}_{name}_{title}{ext}" and
// sanitizes the result. When the name exceeds MaxBytes the title is cut
// further, then the company name, always on rune boundaries.
func (p Policy) FileName(d domain.Disclosure) string {
	name := Truncate(d.CompanyName, p.NameMaxRunes)
	title := Truncate(d.Title, p.TitleMaxRunes)

	out := p.compose(d, name, title)
	if p.MaxBytes <= 0 || len(out) <= p.MaxBytes {
		return out
	}

	titleRunes := []rune(d.Title)
	for kept := keptRunes(len(titleRunes), p.TitleMaxRunes); len(out) > p.MaxBytes && kept > 0; {
		kept--
		title = string(titleRunes[:kept]) + Ellipsis
		out = p.compose(d, name, title)
	}

	nameRunes := []rune(d.CompanyName)
	for kept := keptRunes(len(nameRunes), p.NameMaxRunes); len(out) > p.MaxBytes && kept > 0; {
		kept--
		name = string(nameRunes[:kept]) + Ellipsis
		out = p.compose(d, name, title)
	}

	return out
}

func (p Policy) compose(d domain.Disclosure, name, title string) string {
	fields := []string{
		d.PublishedDate.Format("20060102") + d.PublishedTime,
		d.SecurityCode,
		name,
		title,
	}
	return Sanitize(strings.Join(fields, p.Separator) + p.Extension)
}

func keptRunes(total, max int) int {
	if max > 0 && max < total {
		return max
	}
	return total
}

// DirName is the short per-day directory name, e.g. 240101.
func DirName(day time.Time) string {
	return day.Format("060102")
}
