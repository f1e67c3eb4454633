package places

// fieldMask lists the place fields requested from searchText
const fieldMask = "places.id,places.displayName,places.formattedAddress,places.googleMapsUri," +
	"places.location,places.rating,places.userRatingCount,places.priceLevel," +
	"places.currentOpeningHours,places.reviews,places.photos"

// SearchTextRequest is the body of a Places API v1 places:searchText call
type SearchTextRequest struct {
	TextQuery           string               `json:"textQuery"`
	IncludedType        string               `json:"includedType,omitempty"`
	MaxResultCount      int                  `json:"maxResultCount,omitempty"`
	LocationRestriction *LocationRestriction `json:"locationRestriction,omitempty"`
}

// LocationRestriction limits results to a viewport. The API does not accept a circle here.
type LocationRestriction struct {
	Rectangle Rectangle `json:"rectangle"`
}

// Rectangle is a viewport given by its south-west (low) and north-east (high) corners
type Rectangle struct {
	Low  LatLng `json:"low"`
	High LatLng `json:"high"`
}

// LatLng represents a geographic coordinate
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SearchTextResponse is the places:searchText response. Places is absent when nothing matched.
type SearchTextResponse struct {
	Places []Place `json:"places"`
}

// Place is one searchText result limited to the requested field mask
type Place struct {
	ID                  string        `json:"id"`
	FormattedAddress    string        `json:"formattedAddress,omitempty"`
	Location            *LatLng       `json:"location,omitempty"`
	Rating              float64       `json:"rating,omitempty"`
	GoogleMapsURI       string        `json:"googleMapsUri,omitempty"`
	PriceLevel          string        `json:"priceLevel,omitempty"`
	UserRatingCount     int           `json:"userRatingCount,omitempty"`
	DisplayName         LocalizedText `json:"displayName"`
	CurrentOpeningHours *OpeningHours `json:"currentOpeningHours,omitempty"`
	Reviews             []Review      `json:"reviews,omitempty"`
	Photos              []Photo       `json:"photos,omitempty"`
}

// LocalizedText is a text value with its language
type LocalizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// OpeningHours holds the current opening state of a place
type OpeningHours struct {
	OpenNow             bool     `json:"openNow"`
	WeekdayDescriptions []string `json:"weekdayDescriptions,omitempty"`
}

// Review is a single user review
type Review struct {
	Text LocalizedText `json:"text"`
}

// Photo references a place photo resource ("places/<id>/photos/<ref>")
type Photo struct {
	Name     string `json:"name"`
	WidthPx  int    `json:"widthPx"`
	HeightPx int    `json:"heightPx"`
}

// errorResponse is the error envelope returned by Google APIs
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
