package listing

import (
	"math"
	"strconv"
	"strings"

	"github.com/JakeFAU/listing-scraper/internal/hash/sha256"
)

// Key precedence lists. Earlier keys win.
var (
	priceBlockKeys   = []string{"price", "priceInfo"}
	priceAmountKeys  = []string{"amount", "parsed", "dataPrice", "value"}
	locationKeys     = []string{"location", "locationInfo", "address"}
	imageKeys        = []string{"photos", "imageUrls", "images", "gallery"}
	primaryImageKeys = []string{"primaryImageUrl", "image"}
	descriptionKeys  = []string{"description", "desc"}
	featureKeys      = []string{"features", "featureList", "amenities"}
	summaryKeys      = []string{"summary", "propertyType"}
	roomKeys         = []string{"rooms", "bedrooms", "bedroomCount", "roomCount"}
	titleKeys        = []string{"title", "name"}
	urlKeys          = []string{"listingUrl", "url"}
	mediaURLKeys     = []string{"url", "src"}
)

// Canonicalize maps a provider payload onto the canonical Listing. It never
// fails: absent or malformed fields fall back to documented defaults.
func Canonicalize(provider string, p Payload) Listing {
	root := ValueOf(p)
	url := canonicalURL(root)
	return Listing{
		ID:       canonicalID(provider, root, url),
		URL:      url,
		Title:    canonicalTitle(root),
		Desc:     canonicalDesc(root),
		Price:    canonicalPrice(root),
		Rooms:    canonicalRooms(root),
		Location: canonicalLocation(root),
		Images:   canonicalImages(root),
	}
}

func canonicalPrice(root Value) float64 {
	block := root.Lookup(priceBlockKeys...)
	switch block.Kind() {
	case KindMapping:
		if f, ok := amountOf(block.Lookup(priceAmountKeys...)); ok && f != 0 {
			return sanitizePrice(f)
		}
		if formatted, ok := block.Get("formatted").raw.(string); ok {
			if f, ok := ParseAmount(formatted); ok {
				return sanitizePrice(f)
			}
		}
	case KindScalar:
		if f, ok := amountOf(block); ok {
			return sanitizePrice(f)
		}
	}
	return 0
}

func canonicalLocation(root Value) string {
	block := root.Lookup(locationKeys...)
	var loc string
	switch block.Kind() {
	case KindMapping:
		parts := make([]string, 0, 3)
		for _, part := range []Value{
			block.Get("city"),
			block.Lookup("state", "region"),
			block.Get("country"),
		} {
			if s, ok := part.Text(); ok && s != "" {
				parts = append(parts, s)
			}
		}
		loc = strings.Join(parts, ", ")
	case KindScalar:
		loc, _ = block.Text()
	case KindSequence:
		loc = strings.Join(Strings(block), ", ")
	}
	if loc == "" {
		return DefaultLocation
	}
	return loc
}

func canonicalImages(root Value) []string {
	var images []string
	for _, k := range imageKeys {
		if images = Strings(root.Get(k)); len(images) > 0 {
			break
		}
	}
	if len(images) == 0 {
		if primary := root.Lookup(primaryImageKeys...); !primary.IsEmpty() {
			images = Strings(primary)
		}
	}
	if len(images) == 0 {
		return []string{PlaceholderImage}
	}
	if len(images) > MaxImages {
		images = images[:MaxImages]
	}
	out := make([]string, len(images))
	copy(out, images)
	return out
}

func canonicalDesc(root Value) string {
	if s, ok := root.FirstText(descriptionKeys...); ok {
		return s
	}
	for _, k := range featureKeys {
		if features := Strings(root.Get(k)); len(features) > 0 {
			if joined := strings.TrimSpace(strings.Join(features, " ")); joined != "" {
				return joined
			}
		}
	}
	if s, ok := root.FirstText(summaryKeys...); ok {
		return s
	}
	return DefaultDescription
}

func canonicalRooms(root Value) int {
	v := root.Lookup(roomKeys...)
	if f, ok := v.Number(); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
			return 0
		}
		return int(f)
	}
	s, ok := v.raw.(string)
	if !ok {
		return 0
	}
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return max(n, 0)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= math.MaxInt32 {
		return int(f)
	}
	return 0
}

func canonicalTitle(root Value) string {
	if s, ok := root.FirstText(titleKeys...); ok {
		return s
	}
	return DefaultTitle
}

func canonicalURL(root Value) *string {
	if s, ok := root.FirstText(urlKeys...); ok {
		return &s
	}
	return nil
}

func canonicalID(provider string, root Value, url *string) int {
	explicit := FirstPresent(root.Get("id"), root.Path("dataAttributes", "id"))
	if f, ok := explicit.Number(); ok && !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) <= math.MaxInt32 {
		return int(f)
	}
	if s, ok := explicit.Text(); ok && s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return HashID(s)
	}
	seed := provider
	if url != nil {
		seed = *url
	}
	return HashID(seed)
}

// HashID derives a stable id in [0, IDModulus) from seed.
func HashID(seed string) int {
	return int(sha256.Mod(seed, IDModulus))
}
