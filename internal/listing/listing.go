package listing

// Listing is the canonical, cross-provider listing record.
type Listing struct {
	ID       int      `json:"id"`
	URL      *string  `json:"url"`
	Title    string   `json:"title"`
	Desc     string   `json:"desc"`
	Price    float64  `json:"price"`
	Rooms    int      `json:"rooms"`
	Location string   `json:"location"`
	Images   []string `json:"images"`
}

// Defaults substituted when a payload lacks a field.
const (
	DefaultTitle       = "Untitled Listing"
	DefaultDescription = "Description not provided."
	DefaultLocation    = "Location not provided"
	PlaceholderImage   = "https://via.placeholder.com/400x250?text=Image+Not+Available"

	// MaxImages caps the canonical image list.
	MaxImages = 3
	// IDModulus bounds ids derived from a hash.
	IDModulus = 1_000_000
)

// Payload renders l as an untyped object, the shape consumers receive on
// the wire.
func (l Listing) Payload() Payload {
	images := make([]any, len(l.Images))
	for i, img := range l.Images {
		images[i] = img
	}
	var url any
	if l.URL != nil {
		url = *l.URL
	}
	return Payload{
		"id":       l.ID,
		"url":      url,
		"title":    l.Title,
		"desc":     l.Desc,
		"price":    l.Price,
		"rooms":    l.Rooms,
		"location": l.Location,
		"images":   images,
	}
}
