package idealista

import (
	"maps"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JakeFAU/listing-scraper/internal/listing"
)

// PriceOnRequest is the formatted price used when the listing has none.
const PriceOnRequest = "Price on request"

const areaUnit = "m²"

// Process enriches a raw Idealista item with the unified blocks the
// canonicalizer reads. The raw fields are kept.
func Process(raw listing.Payload) listing.Payload {
	root := listing.ValueOf(raw)
	out := make(listing.Payload, len(raw)+11)
	maps.Copy(out, raw)

	images := galleryURLs(root.Get("gallery"))
	if len(images) == 0 {
		if s, ok := root.Get("MainImage").Text(); ok && s != "" {
			images = []string{s}
		}
	}
	var primary any
	if s, ok := root.Get("MainImage").Text(); ok && s != "" {
		primary = s
	} else if len(images) > 0 {
		primary = images[0]
	}

	specs := root.Get("propertySpecs")

	out["source"] = Name
	out["listingUrl"] = root.Lookup("Url", "listingUrl", "url").Raw()
	out["primaryImageUrl"] = primary
	out["imageUrls"] = images
	out["featureList"] = features(root)
	out["locationInfo"] = locationInfo(root)
	out["livingAreaInfo"] = livingArea(specs)
	out["priceInfo"] = priceInfo(root.Get("price"))
	out["bedroomCount"] = specs.Get("rooms").Raw()
	out["bathroomCount"] = specs.Get("bathrooms").Raw()
	out["office"] = office(root.Get("contactInfo"))
	return out
}

// Price is a tokenized listing price.
type Price struct {
	Amount    *float64
	Currency  string
	Formatted string
}

// ParsePrice splits text such as "1.234.000 €" into amount and currency.
// The last whitespace-separated token is taken as the currency when it is
// alphabetic or at most three characters long, so "350 000" reads as 350
// in currency "000". A malformed number leaves Amount nil.
func ParsePrice(text string) Price {
	text = strings.TrimSpace(text)
	p := Price{Formatted: text}
	if text == "" {
		p.Formatted = PriceOnRequest
		return p
	}

	parts := strings.Fields(text)
	numeric := strings.Join(parts, "")
	if last := parts[len(parts)-1]; isCurrency(last) {
		p.Currency = last
		numeric = strings.Join(parts[:len(parts)-1], "")
	}
	if f, ok := listing.ParseAmount(numeric); ok {
		p.Amount = &f
	}
	return p
}

func isCurrency(token string) bool {
	letters := strings.ReplaceAll(token, ".", "")
	if letters != "" && strings.IndexFunc(letters, func(r rune) bool { return !unicode.IsLetter(r) }) < 0 {
		return true
	}
	return utf8.RuneCountInString(token) <= 3
}

func priceInfo(v listing.Value) map[string]any {
	info := map[string]any{"amount": nil, "currency": nil, "formatted": PriceOnRequest}
	if f, ok := v.Number(); ok {
		info["amount"] = f
		info["formatted"], _ = v.Text()
		return info
	}
	s, ok := v.Raw().(string)
	if !ok {
		return info
	}
	p := ParsePrice(s)
	if p.Amount != nil {
		info["amount"] = *p.Amount
	}
	if p.Currency != "" {
		info["currency"] = p.Currency
	}
	info["formatted"] = p.Formatted
	return info
}

func locationInfo(root listing.Value) map[string]any {
	loc := root.Get("location")
	if loc.Kind() == listing.KindMapping {
		return map[string]any{
			"address":     loc.Get("address").Raw(),
			"city":        loc.Get("city").Raw(),
			"state":       loc.Get("region").Raw(),
			"country":     loc.Get("country").Raw(),
			"coordinates": loc.Get("coordinates").Raw(),
		}
	}
	city := root.Get("city").Raw()
	if s, ok := loc.Raw().(string); ok {
		city = s
	}
	return map[string]any{
		"address":     root.Get("address").Raw(),
		"city":        city,
		"state":       root.Get("province").Raw(),
		"country":     root.Get("country").Raw(),
		"coordinates": root.Get("coordinates").Raw(),
	}
}

func livingArea(specs listing.Value) map[string]any {
	area := listing.FirstPresent(specs.Get("constructedArea"), specs.Get("livingArea"))
	if !area.Truthy() {
		return map[string]any{"value": nil, "unit": areaUnit}
	}
	return map[string]any{"value": area.Raw(), "unit": areaUnit}
}

func features(root listing.Value) []string {
	out := make([]string, 0)
	for _, key := range []string{"characteristics", "building"} {
		for _, item := range root.Get(key).Items() {
			if s, ok := item.Text(); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func galleryURLs(gallery listing.Value) []string {
	out := make([]string, 0)
	for _, item := range gallery.Items() {
		if s, ok := item.Get("url").Text(); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func office(contact listing.Value) map[string]any {
	return map[string]any{
		"name":  contact.Lookup("professionalName", "name").Raw(),
		"phone": contact.Get("phones").Raw(),
		"email": contact.Get("email").Raw(),
		"logo":  contact.Get("logo").Raw(),
		"url":   contact.Get("agencyWebsite").Raw(),
	}
}
