package document

import (
	"html"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicy = bluemonday.StrictPolicy()
	richPolicy = newRichTextPolicy()
	validate   = validator.New()

	allowedURLSchemes = map[string]struct{}{
		"http": {}, "https": {}, "ftp": {}, "ftps": {}, "mailto": {}, "news": {}, "irc": {},
		"gopher": {}, "nntp": {}, "feed": {}, "telnet": {}, "mms": {}, "rtsp": {}, "sms": {},
		"svn": {}, "tel": {}, "fax": {}, "xmpp": {}, "webcal": {}, "urn": {},
	}
)

func newRichTextPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "b", "em", "i", "u", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li")
	p.AllowAttrs("class", "style").OnElements("span", "div")
	p.AllowElements("span", "div")
	p.AllowAttrs("href", "target", "rel").OnElements("a")
	p.RequireParseableURLs(true)
	p.AllowURLSchemes("http", "https", "mailto", "tel")
	p.AllowRelativeURLs(true)
	return p
}

// SanitizeText strips all markup and collapses whitespace to single spaces.
func SanitizeText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = html.UnescapeString(textPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// SanitizeRichText keeps only the allow-listed formatting tags and attributes.
func SanitizeRichText(s string) string {
	return richPolicy.Sanitize(strings.ToValidUTF8(s, ""))
}

// SanitizeEmail returns the trimmed address, or "" when it is not a valid email.
func SanitizeEmail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if err := validate.Var(s, "email"); err != nil {
		return ""
	}
	return s
}

// SanitizeURL returns s when it is relative or uses an allowed scheme, and ""
// otherwise. A bare host gets an http:// prefix.
func SanitizeURL(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "?") {
		if strings.HasPrefix(s, "//") {
			return SanitizeURL("http:" + s)
		}
		return s
	}

	if !strings.Contains(s, ":") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if _, ok := allowedURLSchemes[strings.ToLower(u.Scheme)]; !ok {
		return ""
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return ""
	}
	return s
}
