package matching_test

import (
	"fmt"
	"testing"
	"time"

	"shelterlink/backend/internal/apperr"
	"shelterlink/backend/internal/geo"
	"shelterlink/backend/internal/matching"
	"shelterlink/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var defaultParams = matching.Params{MaxDistanceKm: 50, Limit: 20}

func telAvivShelter() models.ShelterOffer {
	return models.ShelterOffer{
		ID:            "shelter_1",
		HostID:        "host_1",
		Latitude:      ptr(32.08),
		Longitude:     ptr(34.78),
		AvailableFrom: day(2024, 6, 1),
		AvailableTo:   ptr(day(2024, 6, 30)),
		Capacity:      4,
		IsActive:      true,
	}
}

func request(id string, lat, lon float64, date time.Time, people int) models.ShelterRequest {
	return models.ShelterRequest{
		ID:             id,
		SeekerID:       "seeker_" + id,
		Latitude:       ptr(lat),
		Longitude:      ptr(lon),
		Date:           date,
		NumberOfPeople: people,
		Status:         models.RequestPending,
	}
}

// A nearby request inside the window and under capacity matches.
func TestMatchShelterToRequests_NearbyRequestMatches(t *testing.T) {
	r := request("r1", 32.09, 34.79, day(2024, 6, 15), 2)

	matches, err := matching.MatchShelterToRequests(telAvivShelter(), []models.ShelterRequest{r}, defaultParams)

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "r1", matches[0].Request.ID)
	assert.Equal(t, "shelter_1", matches[0].ShelterID)
	assert.InDelta(t, 1.46, matches[0].DistanceKm, 0.1)
	assert.Equal(t, geo.RoundKm(matches[0].DistanceKm), matches[0].DistanceKm, "distance is rounded to one decimal")
}

// A request dated after the window is excluded.
func TestMatchShelterToRequests_DateOutsideWindow(t *testing.T) {
	r := request("r1", 32.09, 34.79, day(2024, 7, 5), 2)

	matches, err := matching.MatchShelterToRequests(telAvivShelter(), []models.ShelterRequest{r}, defaultParams)

	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchShelterToRequests_WindowBoundsInclusive(t *testing.T) {
	s := telAvivShelter()
	first := request("first", 32.09, 34.79, day(2024, 6, 1), 1)
	last := request("last", 32.09, 34.79, time.Date(2024, 6, 30, 18, 30, 0, 0, time.UTC), 1)
	early := request("early", 32.09, 34.79, day(2024, 5, 31), 1)

	matches, err := matching.MatchShelterToRequests(s, []models.ShelterRequest{first, last, early}, defaultParams)

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "first", matches[0].Request.ID)
	assert.Equal(t, "last", matches[1].Request.ID)
}

func TestMatchShelterToRequests_OpenEndedWindow(t *testing.T) {
	s := telAvivShelter()
	s.AvailableTo = nil
	r := request("r1", 32.09, 34.79, day(2031, 1, 1), 1)

	matches, err := matching.MatchShelterToRequests(s, []models.ShelterRequest{r}, defaultParams)

	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

// TestMatchShelterToRequests_FilterPredicate checks that a request appears iff
// all four predicates hold.
func TestMatchShelterToRequests_FilterPredicate(t *testing.T) {
	s := telAvivShelter()

	tests := []struct {
		name    string
		req     models.ShelterRequest
		matched bool
	}{
		{"all predicates hold", request("ok", 32.09, 34.79, day(2024, 6, 10), 4), true},
		{"over capacity", request("cap", 32.09, 34.79, day(2024, 6, 10), 5), false},
		{"too far", request("far", 32.60, 35.30, day(2024, 6, 10), 1), false},
		{"before window", request("before", 32.09, 34.79, day(2024, 5, 20), 1), false},
		{"host is the seeker", func() models.ShelterRequest {
			r := request("self", 32.09, 34.79, day(2024, 6, 10), 1)
			r.SeekerID = s.HostID
			return r
		}(), false},
		{"missing coordinates", func() models.ShelterRequest {
			r := request("nocoords", 0, 0, day(2024, 6, 10), 1)
			r.Latitude, r.Longitude = nil, nil
			return r
		}(), false},
		{"request completed", func() models.ShelterRequest {
			r := request("done", 32.09, 34.79, day(2024, 6, 10), 1)
			r.Status = models.RequestCompleted
			return r
		}(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := matching.MatchShelterToRequests(s, []models.ShelterRequest{tt.req}, defaultParams)
			require.NoError(t, err)
			assert.Equal(t, tt.matched, len(matches) == 1)
		})
	}
}

func TestMatchShelterToRequests_SortedAndTruncated(t *testing.T) {
	s := telAvivShelter()
	reqs := []models.ShelterRequest{
		request("far", 32.20, 34.90, day(2024, 6, 10), 1),
		request("near", 32.081, 34.781, day(2024, 6, 10), 1),
		request("mid", 32.12, 34.80, day(2024, 6, 10), 1),
		request("mid2", 32.13, 34.82, day(2024, 6, 10), 1),
	}

	matches, err := matching.MatchShelterToRequests(s, reqs, matching.Params{MaxDistanceKm: 50, Limit: 3})

	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "near", matches[0].Request.ID)
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i-1].DistanceKm, matches[i].DistanceKm, "ranking must be non-decreasing")
	}
}

func TestMatchShelterToRequests_StableTieBreak(t *testing.T) {
	s := telAvivShelter()
	var reqs []models.ShelterRequest
	for i := 0; i < 5; i++ {
		reqs = append(reqs, request(fmt.Sprintf("r%d", i), 32.09, 34.79, day(2024, 6, 10), 1))
	}

	matches, err := matching.MatchShelterToRequests(s, reqs, defaultParams)

	require.NoError(t, err)
	require.Len(t, matches, 5)
	for i, m := range matches {
		assert.Equal(t, fmt.Sprintf("r%d", i), m.Request.ID)
	}
}

func TestMatchShelterToRequests_OrdersByUnroundedDistance(t *testing.T) {
	s := telAvivShelter()
	reqs := []models.ShelterRequest{
		request("far", 32.0939, 34.78, day(2024, 6, 10), 1),  // ~1.55 km
		request("near", 32.0931, 34.78, day(2024, 6, 10), 1), // ~1.46 km
	}

	matches, err := matching.MatchShelterToRequests(s, reqs, defaultParams)

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, matches[0].DistanceKm, matches[1].DistanceKm, "both round to the same value")
	assert.Equal(t, "near", matches[0].Request.ID)
}

func TestMatchShelterToRequests_EmptyInput(t *testing.T) {
	matches, err := matching.MatchShelterToRequests(telAvivShelter(), nil, defaultParams)

	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestMatchShelterToRequests_ShelterWithoutCoordinates(t *testing.T) {
	s := telAvivShelter()
	s.Latitude = nil
	r := request("r1", 32.09, 34.79, day(2024, 6, 15), 2)

	matches, err := matching.MatchShelterToRequests(s, []models.ShelterRequest{r}, defaultParams)

	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestParams_RejectNonPositive(t *testing.T) {
	r := request("r1", 32.09, 34.79, day(2024, 6, 15), 2)
	bad := []matching.Params{
		{MaxDistanceKm: 0, Limit: 10},
		{MaxDistanceKm: -5, Limit: 10},
		{MaxDistanceKm: 10, Limit: 0},
		{MaxDistanceKm: 10, Limit: -1},
	}

	for _, p := range bad {
		_, err := matching.MatchShelterToRequests(telAvivShelter(), []models.ShelterRequest{r}, p)
		assert.ErrorIs(t, err, apperr.ErrInvalidParameter, "params %+v", p)

		_, err = matching.MatchRequestToShelters(r, []models.ShelterOffer{telAvivShelter()}, p)
		assert.ErrorIs(t, err, apperr.ErrInvalidParameter, "params %+v", p)
	}
}

func TestMatchRequestToShelters_MirrorsFilters(t *testing.T) {
	r := request("r1", 32.09, 34.79, day(2024, 6, 15), 3)

	near := telAvivShelter()
	near.ID = "near"
	small := telAvivShelter()
	small.ID = "small"
	small.Capacity = 2
	own := telAvivShelter()
	own.ID = "own"
	own.HostID = r.SeekerID
	inactive := telAvivShelter()
	inactive.ID = "inactive"
	inactive.IsActive = false
	farther := telAvivShelter()
	farther.ID = "farther"
	farther.Latitude = ptr(32.15)

	matches, err := matching.MatchRequestToShelters(r, []models.ShelterOffer{farther, small, own, inactive, near}, defaultParams)

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].Shelter.ID)
	assert.Equal(t, "farther", matches[1].Shelter.ID)
	assert.Equal(t, "r1", matches[0].RequestID)
}

func TestGroupByRequest_OneGroupPerRequest(t *testing.T) {
	s1 := telAvivShelter()
	s2 := telAvivShelter()
	s2.ID = "shelter_2"
	s2.AvailableFrom = day(2024, 7, 1)
	s2.AvailableTo = nil

	june := request("june", 32.09, 34.79, day(2024, 6, 15), 2)
	july := request("july", 32.09, 34.79, day(2024, 7, 15), 2)
	noCoords := request("nocoords", 0, 0, day(2024, 6, 15), 2)
	noCoords.Latitude = nil

	groups, err := matching.GroupByRequest([]models.ShelterRequest{june, july, noCoords}, []models.ShelterOffer{s1, s2}, defaultParams)

	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "june", groups[0].Request.ID)
	assert.Equal(t, 1, groups[0].MatchCount)
	assert.Equal(t, "shelter_1", groups[0].Matches[0].Shelter.ID)
	assert.Equal(t, "july", groups[1].Request.ID)
	assert.Equal(t, 1, groups[1].MatchCount)
	assert.Equal(t, "shelter_2", groups[1].Matches[0].Shelter.ID)
}

func TestGroupByRequest_CapsEachGroup(t *testing.T) {
	var shelters []models.ShelterOffer
	for i := 0; i < 5; i++ {
		s := telAvivShelter()
		s.ID = fmt.Sprintf("s%d", i)
		shelters = append(shelters, s)
	}
	r := request("r1", 32.09, 34.79, day(2024, 6, 15), 1)

	groups, err := matching.GroupByRequest([]models.ShelterRequest{r}, shelters, matching.Params{MaxDistanceKm: 10, Limit: 2})

	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].MatchCount)
	assert.Len(t, groups[0].Matches, 2)
}

func TestMatchSheltersToRequests_FlattensAcrossShelters(t *testing.T) {
	north := telAvivShelter()
	north.ID = "north"
	north.Latitude = ptr(32.30)
	south := telAvivShelter()
	south.ID = "south"

	reqs := []models.ShelterRequest{
		request("near_north", 32.301, 34.781, day(2024, 6, 10), 1),
		request("near_south", 32.09, 34.79, day(2024, 6, 10), 1),
	}

	matches, err := matching.MatchSheltersToRequests([]models.ShelterOffer{north, south}, reqs, matching.Params{MaxDistanceKm: 5, Limit: 10})

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near_north", matches[0].Request.ID)
	assert.Equal(t, "north", matches[0].ShelterID)
	assert.Equal(t, "near_south", matches[1].Request.ID)
	assert.Equal(t, "south", matches[1].ShelterID)
}
