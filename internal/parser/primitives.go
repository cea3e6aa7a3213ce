// Package parser turns Telegram channel preview pages into typed records.
package parser

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// PreviewBaseURL is the prefix of every canonical channel preview url.
const PreviewBaseURL = "https://t.me/s/"

var backgroundImageRe = regexp.MustCompile(`background-image:url\('(.*)'\)`)

// DecodeCount parses counters as rendered by Telegram ("7", "436.6K", "3.1M").
func DecodeCount(value string) (int64, error) {
	value = strings.TrimSpace(value)

	scale := 0.0
	switch {
	case strings.HasSuffix(value, "M"):
		scale = 1_000_000
	case strings.HasSuffix(value, "K"):
		scale = 1_000
	}

	if scale == 0 {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, &FormatError{Op: "decode count", Input: value}
		}
		return n, nil
	}

	f, err := strconv.ParseFloat(value[:len(value)-1], 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &FormatError{Op: "decode count", Input: value}
	}
	// int64 conversion of an out of range float is implementation defined
	n := f * scale
	if n >= math.MaxInt64 || n < math.MinInt64 {
		return 0, &FormatError{Op: "decode count", Input: value}
	}
	return int64(n), nil
}

// ExtractBackgroundImage returns the url of a background-image:url('...')
// declaration. Protocol relative urls get an https scheme.
func ExtractBackgroundImage(style string) (string, error) {
	m := backgroundImageRe.FindStringSubmatch(style)
	if m == nil {
		return "", &FormatError{Op: "extract background image", Input: style}
	}

	u := m[1]
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return u, nil
}

// JoinText trims every fragment, drops the empty ones and joins the rest.
func JoinText(parts []string, delimiter string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.TrimSpace(strings.Join(kept, delimiter))
}

// TextFragments returns every descendant text node of the selection in
// document order, one fragment per node.
func TextFragments(sel *goquery.Selection) []string {
	var parts []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
	}
	return parts
}

// ownText returns only the direct text children of the first node.
func ownText(sel *goquery.Selection) []string {
	var parts []string
	if sel.Length() == 0 {
		return parts
	}
	for c := sel.Get(0).FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			parts = append(parts, c.Data)
		}
	}
	return parts
}

// ChannelHandle extracts the channel handle from a username, @username or
// any t.me url pointing at the channel or one of its messages.
func ChannelHandle(ref string) string {
	path := strings.TrimSpace(ref)
	if u, err := url.Parse(path); err == nil {
		path = u.Path
	}

	path = strings.TrimPrefix(path, "t.me/")
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimPrefix(path, "s/")
	path = strings.TrimPrefix(path, "@")

	handle, _, _ := strings.Cut(path, "/")
	return handle
}

// NormalizeURL maps any accepted channel reference to its canonical
// preview page url. Normalizing a canonical url returns it unchanged.
func NormalizeURL(ref string) string {
	return PreviewBaseURL + ChannelHandle(ref)
}
