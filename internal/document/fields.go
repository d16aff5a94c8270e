package document

import (
	"regexp"
	"strconv"
	"strings"
)

// Fields is a sparse form submission. It has the same shape as url.Values so
// parsed form bodies convert directly.
type Fields map[string][]string

// Has reports whether key was submitted, even with an empty value.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Get returns the first value submitted for key, or "".
func (f Fields) Get(key string) string {
	if vs := f[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// HasAny reports whether any of keys was submitted.
func (f Fields) HasAny(keys ...string) bool {
	for _, k := range keys {
		if f.Has(k) {
			return true
		}
	}
	return false
}

// FilterKnown returns a copy holding only the keys this package consumes.
func (f Fields) FilterKnown() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if IsKnownField(k) {
			out[k] = append([]string(nil), v...)
		}
	}
	return out
}

// Form keys that are not section content but travel with a submission.
const (
	FieldVersionLabel   = "version_label"
	FieldVersionComment = "version_comment"
)

// MaxListEntries bounds the count fields of list sections.
const MaxListEntries = 100

var (
	Weekdays       = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
	SocialNetworks = []string{"facebook", "instagram", "x", "youtube", "linkedin", "tiktok"}
)

var (
	businessKeys = []string{"business_name", "business_city", "business_region", "business_country", "business_postal"}
	contactKeys  = []string{
		"contact_phone_text", "contact_phone_link", "contact_whatsapp_text", "contact_whatsapp_link",
		"contact_email", "contact_website_text", "contact_website_link",
		"contact_address1", "contact_address2", "contact_address3", "contact_address4",
		"contact_pluscode", "contact_pluscode_url", "contact_lat", "contact_lng",
	}
	brandKeys    = []string{"brand_name", "brand_logo", "brand_palette", "brand_industry"}
	seoKeys      = []string{"seo_title", "seo_description", "seo_keywords", "seo_favicon", "search_terms"}
	settingsKeys = []string{"site_template", "default_locale"}
	heroKeys     = []string{
		"hero_badge", "hero_heading", "hero_subheading", "hero_image", "hero_image_alt",
		"hero_cta1_text", "hero_cta1_url", "hero_cta2_text", "hero_cta2_url",
		"hero_rating_value", "hero_rating_count",
	}
	aboutKeys = []string{"about_html"}
	whyUsKeys = []string{"whyus_title", "whyus_html", "whyus_image"}

	staticKeys = buildStaticKeys()

	productKey = regexp.MustCompile(`^product_(\d+)_(title|image|description|price|icon|cta_text|cta_url)$`)
	galleryKey = regexp.MustCompile(`^gallery_(\d+)_(image|alt)$`)
	hoursKey   = regexp.MustCompile(`^hours_(monday|tuesday|wednesday|thursday|friday|saturday|sunday)_(closed|open|close)$`)
	socialKey  = regexp.MustCompile(`^social_(facebook|instagram|x|youtube|linkedin|tiktok)$`)
)

func buildStaticKeys() map[string]struct{} {
	keys := make(map[string]struct{})
	groups := [][]string{
		businessKeys, contactKeys, brandKeys, seoKeys, settingsKeys, heroKeys, aboutKeys, whyUsKeys,
		{"products_section_title", "product_count", "gallery_count", FieldVersionLabel, FieldVersionComment},
	}
	for _, g := range groups {
		for _, k := range g {
			keys[k] = struct{}{}
		}
	}
	return keys
}

// IsKnownField reports whether key belongs to the enumerated submission key set.
func IsKnownField(key string) bool {
	if _, ok := staticKeys[key]; ok {
		return true
	}
	if m := productKey.FindStringSubmatch(key); m != nil {
		return indexInRange(m[1])
	}
	if m := galleryKey.FindStringSubmatch(key); m != nil {
		return indexInRange(m[1])
	}
	return hoursKey.MatchString(key) || socialKey.MatchString(key)
}

func indexInRange(s string) bool {
	i, err := strconv.Atoi(s)
	return err == nil && i >= 0 && i < MaxListEntries
}

// count parses a list count field. Malformed or negative input is 0.
func (f Fields) count(key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(f.Get(key)))
	if err != nil || n < 0 {
		return 0
	}
	if n > MaxListEntries {
		return MaxListEntries
	}
	return n
}

func (f Fields) hasHours() bool {
	for _, day := range Weekdays {
		if f.HasAny("hours_"+day+"_closed", "hours_"+day+"_open", "hours_"+day+"_close") {
			return true
		}
	}
	return false
}

func (f Fields) hasSocial() bool {
	for _, n := range SocialNetworks {
		if f.Has("social_" + n) {
			return true
		}
	}
	return false
}
