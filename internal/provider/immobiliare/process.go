package immobiliare

import (
	"maps"
	"math"
	"strconv"
	"strings"

	"github.com/JakeFAU/listing-scraper/internal/listing"
)

var (
	listingURLKeys  = []string{"url", "detailUrl", "canonicalUrl"}
	mediaKeys       = []string{"imgs_hd", "imgs_b", "images", "gallery"}
	mediaItemKeys   = []string{"url", "src", "hd", "sd"}
	priceTextKeys   = []string{"formatted", "value", "text", "label"}
	priceAmountKeys = []string{"amount", "raw", "value"}
	labelledLists   = []string{"datiPrincipali", "infoCosti"}
)

const defaultCurrency = "€"

// Process converts one dataset item into the unified listing shape. Agency
// pages are passed through with provenance added.
func Process(raw listing.Payload) listing.Payload {
	root := listing.ValueOf(raw)
	if s, _ := root.Get("dataType").Text(); s == "agency" {
		out := make(listing.Payload, len(raw)+2)
		maps.Copy(out, raw)
		out["source"] = Name
		if root.Get("listingUrl").IsEmpty() {
			out["listingUrl"] = raw["url"]
		}
		return out
	}

	basic := root.Get("basicInfo")
	analytics := listing.FirstPresent(root.Get("analytics"), basic.Get("analytics"))
	listingURL := textOrNil(append(lookupAll(root, listingURLKeys), basic.Path("analytics", "shareUrl"))...)

	location := locationInfo(root, basic.Get("geography"), analytics)
	location["listingUrl"] = listingURL

	topology := basic.Get("topology")

	return listing.Payload{
		"title":       title(root, basic),
		"description": textOrNil(root.Get("desc"), basic.Get("description")),
		"price": priceInfo(listing.FirstPresent(
			root.Get("price"),
			basic.Get("price"),
			root.Get("infoCosti").Index(0),
		)),
		"rooms":      safeInt(listing.FirstPresent(topology.Get("rooms"), basic.Get("rooms"), root.Get("rooms"), root.Get("s"))),
		"bathrooms":  safeInt(listing.FirstPresent(topology.Get("bathrooms"), root.Get("bathrooms"), root.Get("bagni"))),
		"amenities":  amenities(root, analytics),
		"location":   location,
		"photos":     mediaURLs(listing.FirstPresent(root.Get("media"), basic.Get("media"))),
		"office":     office(listing.FirstPresent(root.Get("agencyDetail"), basic.Get("contacts"))),
		"listingUrl": listingURL,
		"source":     Name,
	}
}

func lookupAll(v listing.Value, keys []string) []listing.Value {
	out := make([]listing.Value, len(keys))
	for i, k := range keys {
		out[i] = v.Get(k)
	}
	return out
}

func textOrNil(values ...listing.Value) any {
	for _, v := range values {
		if s, ok := v.Text(); ok && s != "" {
			return s
		}
	}
	return nil
}

func title(root, basic listing.Value) any {
	return textOrNil(
		root.Path("meta", "title"),
		basic.Path("meta", "title"),
		root.Get("title"),
		root.Get("t"),
	)
}

func mediaURLs(media listing.Value) []string {
	urls := make([]string, 0)
	seen := make(map[string]struct{})
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		urls = append(urls, s)
	}

	for _, key := range mediaKeys {
		for _, item := range media.Get(key).Items() {
			switch item.Kind() {
			case listing.KindMapping:
				for _, k := range mediaItemKeys {
					if s, ok := item.Get(k).Text(); ok {
						add(s)
					}
				}
			case listing.KindScalar:
				if s, ok := item.Raw().(string); ok {
					add(strings.TrimSpace(s))
				}
			}
		}
	}
	if s, ok := media.Get("placeholder").Text(); ok {
		add(s)
	}
	return urls
}

func priceInfo(node listing.Value) map[string]any {
	out := map[string]any{"formatted": nil, "amount": nil, "currency": nil}
	switch node.Kind() {
	case listing.KindMapping:
		out["formatted"] = textOrNil(lookupAll(node, priceTextKeys)...)
		amount := node.Lookup(priceAmountKeys...)
		if f, ok := amount.Number(); ok {
			out["amount"] = f
		} else if s, ok := amount.Raw().(string); ok && plainDecimal(s) {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				out["amount"] = f
			}
		}
		if c, ok := node.Get("currency").Text(); ok && c != "" {
			out["currency"] = c
		} else {
			out["currency"] = defaultCurrency
		}
	case listing.KindScalar:
		if f, ok := node.Number(); ok {
			out["amount"] = f
			out["currency"] = defaultCurrency
			out["formatted"] = defaultCurrency + " " + groupThousands(f)
		} else if s, ok := node.Text(); ok {
			out["formatted"] = s
		}
	}
	return out
}

// plainDecimal reports whether s is digits with at most one '.'.
func plainDecimal(s string) bool {
	if s == "" || strings.Count(s, ".") > 1 {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r != '.':
			return false
		}
	}
	return digits > 0
}

// groupThousands renders f rounded to an integer with '.' grouping, the
// Italian convention.
func groupThousands(f float64) string {
	s := strconv.FormatFloat(math.Round(math.Abs(f)), 'f', 0, 64)
	var b strings.Builder
	if f < 0 {
		b.WriteByte('-')
	}
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte('.')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func locationInfo(root, geo, analytics listing.Value) map[string]any {
	return map[string]any{
		"address": textOrNil(root.Get("addr"), geo.Get("street")),
		"city":    textOrNil(root.Get("c"), geo.Path("municipality", "name")),
		"state":   textOrNil(root.Get("region"), geo.Path("province", "name")),
		"country": textOrNil(analytics.Get("country"), geo.Path("municipality", "country")),
		"coordinates": map[string]any{
			"lat": safeFloat(listing.FirstPresent(geo.Path("geolocation", "latitude"), root.Get("lt"))),
			"lng": safeFloat(listing.FirstPresent(geo.Path("geolocation", "longitude"), root.Get("ln"))),
		},
	}
}

func safeFloat(v listing.Value) any {
	if f, ok := v.Number(); ok {
		return f
	}
	if s, ok := v.Raw().(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
	return nil
}

// safeInt truncates numbers and reads the digits out of strings such as
// "3+" or "2 bagni".
func safeInt(v listing.Value) any {
	if f, ok := v.Number(); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return int(f)
	}
	s, ok := v.Raw().(string)
	if !ok {
		return nil
	}
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return nil
	}
	return n
}

func amenities(root, analytics listing.Value) []string {
	var features []string
	for _, item := range analytics.Get("otherFeatures").Items() {
		if s, ok := item.Text(); ok && item.Truthy() {
			features = append(features, s)
		}
	}
	for _, key := range labelledLists {
		for _, item := range root.Get(key).Items() {
			label, okLabel := item.Get("label").Text()
			value, okValue := item.Get("value").Text()
			if okLabel && okValue && label != "" && value != "" {
				features = append(features, label+": "+value)
			}
		}
	}

	out := make([]string, 0, len(features))
	seen := make(map[string]struct{}, len(features))
	for _, f := range features {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func office(agency listing.Value) map[string]any {
	var phone any
	if first := agency.Get("phones").Index(0); first.Kind() == listing.KindMapping {
		phone = textOrNil(first.Get("num"), first.Get("value"))
	} else {
		phone = textOrNil(agency.Get("telefono1"), agency.Get("telefono"))
	}
	return map[string]any{
		"name":  textOrNil(agency.Get("agencyName"), agency.Get("nome"), agency.Get("name")),
		"phone": phone,
		"email": textOrNil(agency.Get("email")),
		"logo":  textOrNil(agency.Get("lag"), agency.Get("logo")),
		"url":   textOrNil(agency.Get("web"), agency.Get("website"), agency.Get("agencyUrl")),
	}
}
