package models

// Coordinates represents geographic coordinates in decimal degrees
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is the resolved search location of a job
type Location struct {
	Coordinates
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
}

// PriceLevel mirrors the Places API v1 price level enum
type PriceLevel string

const (
	PriceLevelUnspecified   PriceLevel = "PRICE_LEVEL_UNSPECIFIED"
	PriceLevelFree          PriceLevel = "PRICE_LEVEL_FREE"
	PriceLevelInexpensive   PriceLevel = "PRICE_LEVEL_INEXPENSIVE"
	PriceLevelModerate      PriceLevel = "PRICE_LEVEL_MODERATE"
	PriceLevelExpensive     PriceLevel = "PRICE_LEVEL_EXPENSIVE"
	PriceLevelVeryExpensive PriceLevel = "PRICE_LEVEL_VERY_EXPENSIVE"
)

// ParsePriceLevel accepts both the v1 enum and the short legacy names ("MODERATE")
func ParsePriceLevel(s string) PriceLevel {
	switch s {
	case "":
		return ""
	case "FREE", "INEXPENSIVE", "MODERATE", "EXPENSIVE", "VERY_EXPENSIVE":
		return PriceLevel("PRICE_LEVEL_" + s)
	default:
		return PriceLevel(s)
	}
}

// PhotoRef references a venue photo that can be downloaded through the Places API
type PhotoRef struct {
	Name     string `json:"name"`
	WidthPx  int    `json:"width_px,omitempty"`
	HeightPx int    `json:"height_px,omitempty"`
}

// Venue is a candidate restaurant returned by a places search
type Venue struct {
	ID               string       `json:"id"`
	DisplayName      string       `json:"display_name"`
	FormattedAddress string       `json:"formatted_address,omitempty"`
	GoogleMapsURI    string       `json:"google_maps_uri,omitempty"`
	Location         *Coordinates `json:"location,omitempty"`
	Rating           float64      `json:"rating,omitempty"`
	UserRatingCount  int          `json:"user_rating_count,omitempty"`
	PriceLevel       PriceLevel   `json:"price_level,omitempty"`
	OpenNow          *bool        `json:"open_now,omitempty"`
	Reviews          []string     `json:"reviews,omitempty"`
	Photos           []PhotoRef   `json:"photos,omitempty"`
}

// PlaceSummary is a fully enriched venue shown to the user
type PlaceSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	URL         string     `json:"url"`
	Rating      float64    `json:"rating"`
	RatingCount int        `json:"rating_count"`
	PriceLevel  PriceLevel `json:"price_level,omitempty"`
	OpenNow     *bool      `json:"open_now"`
	Description *string    `json:"description"`
	Thumbnail   *string    `json:"thumbnail"`
}
