// Package document holds the typed minisite content document and the merge
// of sparse form submissions into it.
package document

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
)

// Top-level section keys as they appear in the stored JSON.
const (
	SectionBusiness = "business"
	SectionContact  = "contact"
	SectionBrand    = "brand"
	SectionSEO      = "seo"
	SectionSettings = "settings"
	SectionHero     = "hero"
	SectionAbout    = "about"
	SectionWhyUs    = "whyUs"
	SectionServices = "services"
	SectionGallery  = "gallery"
	SectionSocial   = "social"
)

// SchemaVersion is stamped on rows written with this document shape
const SchemaVersion = 1

// Document is the complete content snapshot of a minisite. A nil section is
// absent from the stored JSON. Top-level keys this package does not know are
// carried through untouched in Extra.
//
// A document read from storage remembers the stored bytes of every section.
// Sections Merge did not rebuild are written back exactly as stored, and a
// rebuilt section keeps the stored keys its typed shape does not define.
type Document struct {
	Business *Business
	Contact  *Contact
	Brand    *Brand
	SEO      *SEO
	Settings *Settings
	Hero     *Hero
	About    *About
	WhyUs    *WhyUs
	Services *Services
	Gallery  *Gallery
	Social   Social

	Extra map[string]json.RawMessage

	stored  map[string]json.RawMessage
	rebuilt map[string]bool
}

type Business struct {
	Name    string `json:"name"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Postal  string `json:"postal"`
}

// Link is a display text with its target
type Link struct {
	Text string `json:"text"`
	Link string `json:"link"`
}

type DayHours struct {
	Closed bool   `json:"closed,omitempty"`
	Open   string `json:"open,omitempty"`
	Close  string `json:"close,omitempty"`
}

type Contact struct {
	Phone        Link                `json:"phone"`
	WhatsApp     Link                `json:"whatsapp"`
	Email        string              `json:"email"`
	Website      Link                `json:"website"`
	AddressLine1 string              `json:"address_line1"`
	AddressLine2 string              `json:"address_line2"`
	AddressLine3 string              `json:"address_line3"`
	AddressLine4 string              `json:"address_line4"`
	PlusCode     string              `json:"plusCode"`
	PlusCodeURL  string              `json:"plusCodeUrl"`
	Lat          *float64            `json:"lat"`
	Lng          *float64            `json:"lng"`
	Hours        map[string]DayHours `json:"hours,omitempty"`
}

type Brand struct {
	Name     string `json:"name"`
	Logo     string `json:"logo"`
	Industry string `json:"industry"`
	Palette  string `json:"palette"`
}

type SEO struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
	Favicon     string `json:"favicon"`
	SearchTerms string `json:"search_terms"`
}

type Settings struct {
	Template string `json:"template"`
	Locale   string `json:"locale"`
}

type CTA struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type Rating struct {
	Value string `json:"value"`
	Count string `json:"count"`
}

type Hero struct {
	Badge      string `json:"badge"`
	Heading    string `json:"heading"`
	Subheading string `json:"subheading"`
	Image      string `json:"image"`
	ImageAlt   string `json:"imageAlt"`
	CTAs       []CTA  `json:"ctas"`
	Rating     Rating `json:"rating"`
}

type About struct {
	HTML string `json:"html"`
}

type WhyUs struct {
	Title string `json:"title"`
	HTML  string `json:"html"`
	Image string `json:"image"`
}

type ServiceItem struct {
	Title       string `json:"title"`
	Image       string `json:"image"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Icon        string `json:"icon"`
	CTA         string `json:"cta"`
	URL         string `json:"url"`
}

type Services struct {
	Title   string        `json:"title"`
	Listing []ServiceItem `json:"listing"`
}

type GalleryImage struct {
	Src     string `json:"src"`
	Alt     string `json:"alt"`
	Caption string `json:"caption"`
}

type Gallery []GalleryImage

// Social maps a network name to its profile URL
type Social map[string]string

// Empty returns the skeleton a brand-new minisite starts from.
func Empty() Document {
	gallery := Gallery{}
	return Document{
		SEO:   &SEO{},
		Brand: &Brand{Palette: "blue"},
		Hero: &Hero{
			CTAs: []CTA{{}, {}},
		},
		About:    &About{},
		Contact:  &Contact{},
		Services: &Services{Title: "Services", Listing: []ServiceItem{}},
		Social: Social{
			"facebook":  "",
			"instagram": "",
			"x":         "",
			"youtube":   "",
			"linkedin":  "",
		},
		Gallery: &gallery,
	}
}

type section struct {
	key     string
	present bool
	value   interface{}
	owned   []string
}

func (d Document) sections() []section {
	return []section{
		{SectionBusiness, d.Business != nil, d.Business, jsonKeys(Business{})},
		{SectionContact, d.Contact != nil, d.Contact, jsonKeys(Contact{})},
		{SectionBrand, d.Brand != nil, d.Brand, jsonKeys(Brand{})},
		{SectionSEO, d.SEO != nil, d.SEO, jsonKeys(SEO{})},
		{SectionSettings, d.Settings != nil, d.Settings, jsonKeys(Settings{})},
		{SectionHero, d.Hero != nil, d.Hero, jsonKeys(Hero{})},
		{SectionAbout, d.About != nil, d.About, jsonKeys(About{})},
		{SectionWhyUs, d.WhyUs != nil, d.WhyUs, jsonKeys(WhyUs{})},
		{SectionServices, d.Services != nil, d.Services, jsonKeys(Services{})},
		{SectionGallery, d.Gallery != nil, d.Gallery, nil},
		{SectionSocial, d.Social != nil, d.Social, SocialNetworks},
	}
}

// MarshalJSON writes the document with its top-level keys in sorted order.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.Extra)+11)
	for k, v := range d.Extra {
		out[k] = v
	}

	for _, s := range d.sections() {
		stored, wasStored := d.stored[s.key]
		switch {
		case wasStored && (!s.present || !d.rebuilt[s.key]):
			out[s.key] = stored
		case s.present:
			b, err := json.Marshal(s.value)
			if err != nil {
				return nil, err
			}
			if wasStored {
				if b, err = overlay(stored, b, s.owned); err != nil {
					return nil, err
				}
			}
			out[s.key] = b
		}
	}

	return json.Marshal(out)
}

// overlay lays the keys of a rebuilt section over its stored object. Keys in
// owned belong to the typed shape and are taken from typed or dropped.
func overlay(stored, typed json.RawMessage, owned []string) (json.RawMessage, error) {
	var base map[string]json.RawMessage
	if err := json.Unmarshal(stored, &base); err != nil || base == nil {
		return typed, nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(typed, &top); err != nil || top == nil {
		return typed, nil
	}
	for _, k := range owned {
		delete(base, k)
	}
	for k, v := range top {
		base[k] = v
	}
	return json.Marshal(base)
}

// jsonKeys lists the json names of a struct's fields
func jsonKeys(v interface{}) []string {
	t := reflect.TypeOf(v)
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if name := jsonName(t.Field(i)); name != "" {
			keys = append(keys, name)
		}
	}
	return keys
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// markRebuilt records that Merge rebuilt key. The set is copied first so the
// document Merge started from is left alone.
func (d *Document) markRebuilt(key string) {
	rebuilt := make(map[string]bool, len(d.rebuilt)+1)
	for k, v := range d.rebuilt {
		rebuilt[k] = v
	}
	rebuilt[key] = true
	d.rebuilt = rebuilt
}

// UnmarshalJSON reads a stored document. Every known section keeps its stored
// bytes; one that does not fit its typed shape decodes field by field.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = Document{stored: make(map[string]json.RawMessage, len(raw))}
	for key, value := range raw {
		if !isSection(key) {
			if d.Extra == nil {
				d.Extra = make(map[string]json.RawMessage)
			}
			d.Extra[key] = value
			continue
		}
		d.stored[key] = value
		if !bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			d.decodeSection(key, value)
		}
	}
	return nil
}

func isSection(key string) bool {
	switch key {
	case SectionBusiness, SectionContact, SectionBrand, SectionSEO, SectionSettings, SectionHero,
		SectionAbout, SectionWhyUs, SectionServices, SectionGallery, SectionSocial:
		return true
	}
	return false
}

func (d *Document) decodeSection(key string, value json.RawMessage) {
	switch key {
	case SectionBusiness:
		decodeInto(value, &d.Business)
	case SectionContact:
		decodeInto(value, &d.Contact)
	case SectionBrand:
		decodeInto(value, &d.Brand)
	case SectionSEO:
		decodeInto(value, &d.SEO)
	case SectionSettings:
		decodeInto(value, &d.Settings)
	case SectionHero:
		decodeInto(value, &d.Hero)
	case SectionAbout:
		decodeInto(value, &d.About)
	case SectionWhyUs:
		decodeInto(value, &d.WhyUs)
	case SectionServices:
		decodeInto(value, &d.Services)
	case SectionGallery:
		decodeInto(value, &d.Gallery)
	case SectionSocial:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(value, &obj); err != nil || obj == nil {
			return
		}
		s := make(Social, len(obj))
		for k, v := range obj {
			var u string
			if json.Unmarshal(v, &u) == nil {
				s[k] = u
			}
		}
		d.Social = s
	}
}

// decodeInto decodes value into a new T. A struct whose fields do not all
// fit is decoded leniently; anything else that does not fit leaves dst nil.
func decodeInto[T any](value json.RawMessage, dst **T) {
	var v T
	if err := json.Unmarshal(value, &v); err == nil {
		*dst = &v
		return
	}
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() != reflect.Struct {
		return
	}
	var zero T
	v = zero
	if decodeLenient(value, rv) {
		*dst = &v
	}
}

// decodeLenient fills the fields of the struct rv one at a time. Numbers and
// bools stored where text is expected become their literal text. Nested
// structs recurse. It reports whether value was an object at all.
func decodeLenient(value json.RawMessage, rv reflect.Value) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(value, &obj); err != nil || obj == nil {
		return false
	}

	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		name := jsonName(t.Field(i))
		raw, ok := obj[name]
		if name == "" || !ok {
			continue
		}
		fv := rv.Field(i)
		if err := json.Unmarshal(raw, fv.Addr().Interface()); err == nil {
			continue
		}
		fv.Set(reflect.Zero(fv.Type()))

		switch fv.Kind() {
		case reflect.String:
			var scalar interface{}
			if json.Unmarshal(raw, &scalar) != nil {
				continue
			}
			switch scalar.(type) {
			case float64, bool:
				fv.SetString(string(bytes.TrimSpace(raw)))
			}
		case reflect.Struct:
			decodeLenient(raw, fv)
		}
	}
	return true
}

// Parse decodes a stored document. Empty input yields the skeleton.
func Parse(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null" {
		return Empty(), nil
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, err
	}
	return d, nil
}

// Profile is the identity and location slice duplicated out of the document
// onto version and record rows.
type Profile struct {
	Title         string
	Name          string
	City          string
	Region        string
	CountryCode   string
	PostalCode    string
	SiteTemplate  string
	Palette       string
	Industry      string
	DefaultLocale string
	SearchTerms   string
	Lat           *float64
	Lng           *float64
}

// Derive extracts the denormalized profile fields.
func (d Document) Derive() Profile {
	var p Profile
	if d.SEO != nil {
		p.Title = d.SEO.Title
		p.SearchTerms = d.SEO.SearchTerms
	}
	if d.Business != nil {
		p.Name = d.Business.Name
		p.City = d.Business.City
		p.Region = d.Business.Region
		p.CountryCode = d.Business.Country
		p.PostalCode = d.Business.Postal
	}
	if d.Brand != nil {
		if p.Name == "" {
			p.Name = d.Brand.Name
		}
		p.Palette = d.Brand.Palette
		p.Industry = d.Brand.Industry
	}
	if d.Settings != nil {
		p.SiteTemplate = d.Settings.Template
		p.DefaultLocale = d.Settings.Locale
	}
	if d.Contact != nil && d.Contact.Lat != nil && d.Contact.Lng != nil {
		lat, lng := *d.Contact.Lat, *d.Contact.Lng
		p.Lat, p.Lng = &lat, &lng
	}
	return p
}
