package parser

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const listPathTemplate = "/inbs/I_list_%03d_%s.html"

func buildPageURL(base string, page int, date string) string {
	return strings.TrimSuffix(base, "/") + fmt.Sprintf(listPathTemplate, page, date)
}

// decodeBody converts a listing page to UTF-8. TDnet historically serves
// Shift_JIS (MS932).
func decodeBody(body []byte, label string) (io.Reader, error) {
	src := bytes.NewReader(body)

	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return src, nil
	case "auto":
		return transform.NewReader(src, sniffEncoding(body).NewDecoder()), nil
	case "shift_jis", "shift-jis", "sjis", "ms932", "cp932", "windows-31j":
		return transform.NewReader(src, japanese.ShiftJIS.NewDecoder()), nil
	}

	enc, name := charset.Lookup(label)
	if enc == nil {
		return nil, fmt.Errorf("unsupported page encoding %q", label)
	}
	if name == "utf-8" {
		return src, nil
	}
	return transform.NewReader(src, enc.NewDecoder()), nil
}

// sniffEncoding honours a BOM or meta charset. Without either, x/net only
// looks at the first 1KiB and guesses windows-1252 for non-UTF-8 bytes; TDnet
// pages are then Shift_JIS.
func sniffEncoding(body []byte) encoding.Encoding {
	enc, name, certain := charset.DetermineEncoding(body, "")
	if certain {
		return enc
	}
	switch {
	case name == "windows-1252":
		return japanese.ShiftJIS
	case name == "utf-8" && !utf8.Valid(body):
		return japanese.ShiftJIS
	}
	return enc
}

func parsePage(body []byte, encoding string) (*goquery.Document, error) {
	r, err := decodeBody(body, encoding)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// resolveLink joins href against the page it was found on.
func resolveLink(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page url %s: %w", pageURL, err)
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", href, err)
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme == "" || abs.Host == "" {
		return "", fmt.Errorf("link %q does not resolve to an absolute url", href)
	}
	return abs.String(), nil
}
