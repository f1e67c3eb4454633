package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/culefilo/internal/models"
)

const legacyPlacesFetched = `{
  "id": "legacy-1",
  "input": {"favoriteMealName": "ramen", "address": "Alexanderplatz, Berlin"},
  "location": {
    "zipCode": "10178", "country": "Germany", "city": "Berlin", "state": "Berlin",
    "coordinates": {"latitude": 52.52, "longitude": 13.405}
  },
  "state": "failure",
  "stage": "placesFetched",
  "placesFetched": {
    "zeta": {
      "id": "zeta",
      "displayName": {"text": "Zeta Ramen"},
      "formattedAddress": "Street 1",
      "googleMapsUri": "https://maps/zeta",
      "rating": 4.5,
      "userRatingCount": 120,
      "priceLevel": "PRICE_LEVEL_MODERATE",
      "currentOpeningHours": {"openNow": true},
      "reviews": [{"text": {"text": "rich broth"}}, {"text": {"text": ""}}],
      "photos": [{"name": "places/zeta/photos/1", "widthPx": 800, "heightPx": 600}]
    },
    "alpha": {
      "displayName": {"text": "Alpha Udon"}
    }
  },
  "descriptions": [{"id": "zeta", "description": "broth lovers"}, null, {"id": "ghost", "description": "gone"}],
  "thumbnails": [{"id": "alpha", "thumbnail": "data:image/jpeg;base64,AAA"}],
  "logs": ["[1700000000000] Search started..."],
  "createdAt": 1700000000000
}`

const legacySuccess = `{
  "id": "legacy-2",
  "input": {"favoriteMealName": "soba", "address": "Berlin"},
  "location": {"coordinates": {"latitude": 52.5, "longitude": 13.4}},
  "state": "success",
  "stage": "parsing",
  "placesFetched": {},
  "places": [{
    "id": "p1", "name": "Soba Ya", "description": "nutty noodles", "address": "Street 2",
    "url": "https://maps/p1", "thumbnail": null,
    "rating": {"number": 4.1, "count": 33}, "price": "INEXPENSIVE", "isOpenNow": false
  }],
  "logs": [],
  "createdAt": 1700000500000
}`

func TestDecode_LegacyPlacesFetched(t *testing.T) {
	job, err := Decode([]byte(legacyPlacesFetched))
	require.NoError(t, err)

	assert.Equal(t, models.CurrentJobVersion, job.Version)
	assert.Equal(t, "legacy-1", job.ID)
	assert.Equal(t, "ramen", job.Input.FavoriteMealName)
	assert.Equal(t, "Alexanderplatz, Berlin", job.Input.LocationQuery)
	assert.Equal(t, 52.52, job.Location.Latitude)
	assert.Equal(t, "10178", job.Location.ZipCode)
	assert.Equal(t, models.JobStateFailure, job.State)
	assert.Equal(t, models.JobStagePlacesFetched, job.Stage)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), job.CreatedAt)

	// object key order is discovery order
	require.Len(t, job.PlacesFetched, 2)
	zeta, alpha := job.PlacesFetched[0], job.PlacesFetched[1]
	assert.Equal(t, "zeta", zeta.ID)
	assert.Equal(t, "alpha", alpha.ID, "id falls back to the map key")

	assert.Equal(t, "Zeta Ramen", zeta.DisplayName)
	assert.Equal(t, models.PriceLevelModerate, zeta.PriceLevel)
	require.NotNil(t, zeta.OpenNow)
	assert.True(t, *zeta.OpenNow)
	assert.Equal(t, []string{"rich broth"}, zeta.Reviews)
	assert.Equal(t, []models.PhotoRef{{Name: "places/zeta/photos/1", WidthPx: 800, HeightPx: 600}}, zeta.Photos)
	assert.Nil(t, alpha.OpenNow)

	assert.Equal(t, map[string]string{"zeta": "broth lovers"}, job.Descriptions)
	assert.Equal(t, map[string]string{"alpha": "data:image/jpeg;base64,AAA"}, job.Thumbnails)
	assert.Equal(t, []string{"[1700000000000] Search started..."}, job.Logs)
}

func TestDecode_LegacySuccess(t *testing.T) {
	job, err := Decode([]byte(legacySuccess))
	require.NoError(t, err)

	assert.Equal(t, models.JobStateSuccess, job.State)
	assert.Empty(t, job.PlacesFetched)
	require.Len(t, job.Places, 1)

	place := job.Places[0]
	assert.Equal(t, "Soba Ya", place.Name)
	assert.Equal(t, 4.1, place.Rating)
	assert.Equal(t, 33, place.RatingCount)
	assert.Equal(t, models.PriceLevelInexpensive, place.PriceLevel)
	require.NotNil(t, place.Description)
	assert.Equal(t, "nutty noodles", *place.Description)
	assert.Nil(t, place.Thumbnail)
	require.NotNil(t, place.OpenNow)
	assert.False(t, *place.OpenNow)
}

func TestDecode_LegacyRunningIsClaimable(t *testing.T) {
	data := `{"id":"legacy-3","input":{"favoriteMealName":"pho"},"state":"running","stage":"initial","createdAt":1700000000000}`
	job, err := Decode([]byte(data))
	require.NoError(t, err)

	require.NotNil(t, job.Lease)
	assert.True(t, job.Lease.Expired(time.Now()))

	_, err = NextState(job, Claim{OwnerToken: "own_a", TTL: time.Minute}, time.Now())
	assert.NoError(t, err)
}

func TestDecode_LegacyAllPlacesAndStageSpellings(t *testing.T) {
	for _, stage := range []string{"placesFetched", "places_fetched", "PLACES-FETCHED"} {
		data := `{"id":"x","input":{"favoriteMealName":"pho"},"state":"created","stage":"` + stage + `",
			"allPlaces":{"b":{"id":"b"},"a":{"id":"a"}},"createdAt":1}`
		job, err := Decode([]byte(data))
		require.NoError(t, err, stage)
		assert.Equal(t, models.JobStagePlacesFetched, job.Stage)
		require.Len(t, job.PlacesFetched, 2)
		assert.Equal(t, "b", job.PlacesFetched[0].ID)
	}
}

func TestDecode_CurrentVersionRoundTrip(t *testing.T) {
	job := newJob()
	job.PlacesFetched = venues("A", "B")

	data, err := Encode(job)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, []string{decoded.PlacesFetched[0].ID, decoded.PlacesFetched[1].ID})
	assert.True(t, job.CreatedAt.Equal(decoded.CreatedAt))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", `{"id":`, ErrInvalidRecord},
		{"future version", `{"version": 9, "id": "x"}`, ErrUnsupportedVersion},
		{"unknown legacy state", `{"id":"x","input":{"favoriteMealName":"pho"},"state":"paused"}`, ErrInvalidRecord},
		{"places not an object", `{"id":"x","input":{"favoriteMealName":"pho"},"placesFetched":[1,2]}`, ErrInvalidRecord},
		{"v2 breaking invariants", `{"version": 2, "id": "x", "input": {"favorite_meal_name": "pho"}, "state": "running", "stage": "initial"}`, ErrInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
