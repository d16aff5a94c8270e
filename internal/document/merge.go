package document

import (
	"math"
	"strconv"
	"strings"
)

// Merge rebuilds every section that has at least one key in fields and copies
// the rest of existing unchanged. A nil existing starts from Empty. Within a
// rebuilt section each field falls back to its existing value when its key was
// not submitted, and stored keys outside the typed shape are kept. Merge never
// fails; malformed values degrade to "" or null.
func Merge(existing *Document, fields Fields) Document {
	var doc Document
	if existing == nil {
		doc = Empty()
	} else {
		doc = *existing
	}
	if len(fields) == 0 {
		return doc
	}

	if fields.HasAny(businessKeys...) {
		doc.Business = mergeBusiness(doc.Business, fields)
		doc.markRebuilt(SectionBusiness)
	}
	if fields.HasAny(contactKeys...) || fields.hasHours() {
		doc.Contact = mergeContact(doc.Contact, fields)
		doc.markRebuilt(SectionContact)
	}
	if fields.HasAny(brandKeys...) {
		doc.Brand = mergeBrand(doc.Brand, fields)
		doc.markRebuilt(SectionBrand)
	}
	if fields.HasAny(seoKeys...) {
		doc.SEO = mergeSEO(doc.SEO, fields)
		doc.markRebuilt(SectionSEO)
	}
	if fields.HasAny(settingsKeys...) {
		doc.Settings = mergeSettings(doc.Settings, fields)
		doc.markRebuilt(SectionSettings)
	}
	if fields.HasAny(heroKeys...) {
		doc.Hero = mergeHero(doc.Hero, fields)
		doc.markRebuilt(SectionHero)
	}
	if fields.HasAny(aboutKeys...) {
		doc.About = mergeAbout(doc.About, fields)
		doc.markRebuilt(SectionAbout)
	}
	if fields.HasAny(whyUsKeys...) {
		doc.WhyUs = mergeWhyUs(doc.WhyUs, fields)
		doc.markRebuilt(SectionWhyUs)
	}
	if fields.HasAny("products_section_title", "product_count") {
		doc.Services = mergeServices(doc.Services, fields)
		doc.markRebuilt(SectionServices)
	}
	if fields.Has("gallery_count") {
		doc.Gallery = buildGallery(fields)
		doc.markRebuilt(SectionGallery)
	}
	if fields.hasSocial() {
		doc.Social = mergeSocial(doc.Social, fields)
		doc.markRebuilt(SectionSocial)
	}
	return doc
}

func text(f Fields, key, existing string) string {
	if f.Has(key) {
		return SanitizeText(f.Get(key))
	}
	return existing
}

func link(f Fields, key, existing string) string {
	if f.Has(key) {
		return SanitizeURL(f.Get(key))
	}
	return existing
}

func rich(f Fields, key, existing string) string {
	if f.Has(key) {
		return SanitizeRichText(f.Get(key))
	}
	return existing
}

func mergeBusiness(cur *Business, f Fields) *Business {
	var b Business
	if cur != nil {
		b = *cur
	}
	b.Name = text(f, "business_name", b.Name)
	b.City = text(f, "business_city", b.City)
	b.Region = text(f, "business_region", b.Region)
	b.Country = text(f, "business_country", b.Country)
	b.Postal = text(f, "business_postal", b.Postal)
	return &b
}

func mergeContact(cur *Contact, f Fields) *Contact {
	var c Contact
	if cur != nil {
		c = *cur
	}
	c.Phone = Link{
		Text: text(f, "contact_phone_text", c.Phone.Text),
		Link: text(f, "contact_phone_link", c.Phone.Link),
	}
	c.WhatsApp = Link{
		Text: text(f, "contact_whatsapp_text", c.WhatsApp.Text),
		Link: text(f, "contact_whatsapp_link", c.WhatsApp.Link),
	}
	if f.Has("contact_email") {
		c.Email = SanitizeEmail(f.Get("contact_email"))
	}
	c.Website = Link{
		Text: text(f, "contact_website_text", c.Website.Text),
		Link: link(f, "contact_website_link", c.Website.Link),
	}
	c.AddressLine1 = text(f, "contact_address1", c.AddressLine1)
	c.AddressLine2 = text(f, "contact_address2", c.AddressLine2)
	c.AddressLine3 = text(f, "contact_address3", c.AddressLine3)
	c.AddressLine4 = text(f, "contact_address4", c.AddressLine4)
	c.PlusCode = text(f, "contact_pluscode", c.PlusCode)
	c.PlusCodeURL = link(f, "contact_pluscode_url", c.PlusCodeURL)
	c.Lat = coordinate(f, "contact_lat", c.Lat, 90)
	c.Lng = coordinate(f, "contact_lng", c.Lng, 180)
	if f.hasHours() {
		c.Hours = mergeHours(c.Hours, f)
	}
	return &c
}

// coordinate keeps the existing value for empty input and nulls input that is
// not a finite number within ±limit.
func coordinate(f Fields, key string, cur *float64, limit float64) *float64 {
	raw := strings.TrimSpace(f.Get(key))
	if raw == "" {
		return cur
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
		return nil
	}
	return &v
}

func mergeHours(cur map[string]DayHours, f Fields) map[string]DayHours {
	hours := make(map[string]DayHours, len(cur))
	for k, v := range cur {
		hours[k] = v
	}
	for _, day := range Weekdays {
		name := strings.ToUpper(day[:1]) + day[1:]
		closedKey, openKey, closeKey := "hours_"+day+"_closed", "hours_"+day+"_open", "hours_"+day+"_close"
		opensAt := SanitizeText(f.Get(openKey))
		closesAt := SanitizeText(f.Get(closeKey))

		switch {
		case isTruthy(f.Get(closedKey)):
			hours[name] = DayHours{Closed: true}
		case opensAt != "" && closesAt != "":
			hours[name] = DayHours{Open: opensAt, Close: closesAt}
		case f.HasAny(openKey, closeKey):
			delete(hours, name)
		}
	}
	return hours
}

func isTruthy(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	return s != "" && s != "0" && s != "false" && s != "off"
}

func mergeBrand(cur *Brand, f Fields) *Brand {
	var b Brand
	if cur != nil {
		b = *cur
	}
	b.Name = text(f, "brand_name", b.Name)
	b.Logo = text(f, "brand_logo", b.Logo)
	b.Industry = text(f, "brand_industry", b.Industry)
	b.Palette = text(f, "brand_palette", b.Palette)
	if b.Palette == "" && !f.Has("brand_palette") {
		b.Palette = "blue"
	}
	return &b
}

func mergeSEO(cur *SEO, f Fields) *SEO {
	var s SEO
	if cur != nil {
		s = *cur
	}
	s.Title = text(f, "seo_title", s.Title)
	s.Description = text(f, "seo_description", s.Description)
	s.Keywords = text(f, "seo_keywords", s.Keywords)
	s.Favicon = text(f, "seo_favicon", s.Favicon)
	s.SearchTerms = text(f, "search_terms", s.SearchTerms)
	return &s
}

func mergeSettings(cur *Settings, f Fields) *Settings {
	var s Settings
	if cur != nil {
		s = *cur
	}
	s.Template = text(f, "site_template", s.Template)
	s.Locale = text(f, "default_locale", s.Locale)
	return &s
}

func mergeHero(cur *Hero, f Fields) *Hero {
	var h Hero
	if cur != nil {
		h = *cur
	}
	ctas := make([]CTA, 2)
	copy(ctas, h.CTAs)
	for i := range ctas {
		n := strconv.Itoa(i + 1)
		ctas[i] = CTA{
			Text: text(f, "hero_cta"+n+"_text", ctas[i].Text),
			URL:  link(f, "hero_cta"+n+"_url", ctas[i].URL),
		}
	}
	// extra CTAs beyond the two form slots are kept as stored
	if len(h.CTAs) > 2 {
		ctas = append(ctas, h.CTAs[2:]...)
	}

	h.Badge = text(f, "hero_badge", h.Badge)
	h.Heading = text(f, "hero_heading", h.Heading)
	h.Subheading = rich(f, "hero_subheading", h.Subheading)
	h.Image = link(f, "hero_image", h.Image)
	h.ImageAlt = text(f, "hero_image_alt", h.ImageAlt)
	h.CTAs = ctas
	h.Rating = Rating{
		Value: text(f, "hero_rating_value", h.Rating.Value),
		Count: text(f, "hero_rating_count", h.Rating.Count),
	}
	return &h
}

func mergeAbout(cur *About, f Fields) *About {
	var a About
	if cur != nil {
		a = *cur
	}
	a.HTML = rich(f, "about_html", a.HTML)
	return &a
}

func mergeWhyUs(cur *WhyUs, f Fields) *WhyUs {
	var w WhyUs
	if cur != nil {
		w = *cur
	}
	w.Title = text(f, "whyus_title", w.Title)
	w.HTML = rich(f, "whyus_html", w.HTML)
	w.Image = link(f, "whyus_image", w.Image)
	return &w
}

func mergeServices(cur *Services, f Fields) *Services {
	var s Services
	if cur != nil {
		s = *cur
	}
	s.Title = text(f, "products_section_title", s.Title)
	if s.Title == "" {
		s.Title = "Products & Services"
	}

	if f.Has("product_count") {
		n := f.count("product_count")
		listing := make([]ServiceItem, 0, n)
		for i := 0; i < n; i++ {
			p := "product_" + strconv.Itoa(i) + "_"
			listing = append(listing, ServiceItem{
				Title:       SanitizeText(f.Get(p + "title")),
				Image:       SanitizeURL(f.Get(p + "image")),
				Description: SanitizeRichText(f.Get(p + "description")),
				Price:       SanitizeText(f.Get(p + "price")),
				Icon:        SanitizeText(f.Get(p + "icon")),
				CTA:         SanitizeText(f.Get(p + "cta_text")),
				URL:         SanitizeURL(f.Get(p + "cta_url")),
			})
		}
		s.Listing = listing
	} else if s.Listing == nil {
		s.Listing = []ServiceItem{}
	}
	return &s
}

func buildGallery(f Fields) *Gallery {
	n := f.count("gallery_count")
	g := make(Gallery, 0, n)
	for i := 0; i < n; i++ {
		p := "gallery_" + strconv.Itoa(i) + "_"
		src := SanitizeURL(f.Get(p + "image"))
		if src == "" {
			continue
		}
		alt := SanitizeText(f.Get(p + "alt"))
		g = append(g, GalleryImage{Src: src, Alt: alt, Caption: alt})
	}
	return &g
}

func mergeSocial(cur Social, f Fields) Social {
	s := make(Social, len(cur))
	for k, v := range cur {
		s[k] = v
	}
	for _, network := range SocialNetworks {
		key := "social_" + network
		if !f.Has(key) {
			continue
		}
		if u := SanitizeURL(f.Get(key)); u != "" {
			s[network] = u
		} else {
			delete(s, network)
		}
	}
	return s
}
