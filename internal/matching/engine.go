// Package matching pairs shelter offers with shelter requests by distance,
// date window and capacity.
//
// The engine is a naive O(shelters x requests) scan. That is fine for the
// pool sizes one region produces; a spatial index is the next step if the
// pools grow by orders of magnitude.
package matching

import (
	"sort"
	"time"

	"shelterlink/backend/internal/apperr"
	"shelterlink/backend/internal/geo"
	"shelterlink/backend/internal/models"
)

// Params bounds a matching query.
type Params struct {
	MaxDistanceKm float64
	Limit         int
}

// Validate rejects non-positive bounds.
func (p Params) Validate() error {
	if !(p.MaxDistanceKm > 0) {
		return apperr.InvalidParameter("maxDistanceKm must be positive, got %v", p.MaxDistanceKm)
	}
	if p.Limit <= 0 {
		return apperr.InvalidParameter("limit must be positive, got %d", p.Limit)
	}
	return nil
}

// RequestMatch is a request ranked against one shelter.
type RequestMatch struct {
	Request    models.ShelterRequest `json:"request"`
	ShelterID  string                `json:"shelter_id"`
	DistanceKm float64               `json:"distance_km"`
	MatchedAt  time.Time             `json:"matched_at"`

	exactKm float64
}

// ShelterMatch is a shelter ranked against one request.
type ShelterMatch struct {
	Shelter    models.ShelterOffer `json:"shelter"`
	RequestID  string              `json:"request_id"`
	DistanceKm float64             `json:"distance_km"`
	MatchedAt  time.Time           `json:"matched_at"`

	exactKm float64
}

// RequestGroup is the ranked shelter list for one of a seeker's requests.
type RequestGroup struct {
	Request    models.ShelterRequest `json:"request"`
	Matches    []ShelterMatch        `json:"matches"`
	MatchCount int                   `json:"match_count"`
}

// civilDate drops the time of day so date windows compare by calendar day.
func civilDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// inWindow reports whether date falls in [from, to] inclusive; to == nil is open-ended.
func inWindow(date, from time.Time, to *time.Time) bool {
	day := civilDate(date)
	if day.Before(civilDate(from)) {
		return false
	}
	return to == nil || !day.After(civilDate(*to))
}

// eligible applies the four match predicates and returns the raw distance.
func eligible(s *models.ShelterOffer, r *models.ShelterRequest, maxKm float64) (float64, bool) {
	if !s.HasCoordinates() || !r.HasCoordinates() {
		return 0, false
	}
	if !s.IsActive || r.Status != models.RequestPending {
		return 0, false
	}
	if r.SeekerID == s.HostID {
		return 0, false
	}
	if r.NumberOfPeople > s.Capacity {
		return 0, false
	}
	if !inWindow(r.Date, s.AvailableFrom, s.AvailableTo) {
		return 0, false
	}
	d := geo.DistanceKm(*s.Latitude, *s.Longitude, *r.Latitude, *r.Longitude)
	if d > maxKm {
		return 0, false
	}
	return d, true
}

var now = time.Now

// MatchShelterToRequests ranks requests that fit shelter, nearest first by
// unrounded distance. Ties keep the order of requests.
func MatchShelterToRequests(shelter models.ShelterOffer, requests []models.ShelterRequest, p Params) ([]RequestMatch, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	at := now()
	out := make([]RequestMatch, 0)
	for i := range requests {
		d, ok := eligible(&shelter, &requests[i], p.MaxDistanceKm)
		if !ok {
			continue
		}
		out = append(out, RequestMatch{
			Request:    requests[i],
			ShelterID:  shelter.ID,
			DistanceKm: geo.RoundKm(d),
			MatchedAt:  at,
			exactKm:    d,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].exactKm < out[j].exactKm })
	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

// MatchRequestToShelters ranks shelters that fit request, nearest first.
// Ties keep the order of shelters.
func MatchRequestToShelters(request models.ShelterRequest, shelters []models.ShelterOffer, p Params) ([]ShelterMatch, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	at := now()
	out := make([]ShelterMatch, 0)
	for i := range shelters {
		d, ok := eligible(&shelters[i], &request, p.MaxDistanceKm)
		if !ok {
			continue
		}
		out = append(out, ShelterMatch{
			Shelter:    shelters[i],
			RequestID:  request.ID,
			DistanceKm: geo.RoundKm(d),
			MatchedAt:  at,
			exactKm:    d,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].exactKm < out[j].exactKm })
	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

// GroupByRequest runs MatchRequestToShelters for each of a seeker's open
// requests. Requests without coordinates get no group.
func GroupByRequest(requests []models.ShelterRequest, shelters []models.ShelterOffer, p Params) ([]RequestGroup, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	groups := make([]RequestGroup, 0, len(requests))
	for _, r := range requests {
		if !r.HasCoordinates() || r.Status != models.RequestPending {
			continue
		}
		matches, err := MatchRequestToShelters(r, shelters, p)
		if err != nil {
			return nil, err
		}
		groups = append(groups, RequestGroup{
			Request:    r,
			Matches:    matches,
			MatchCount: len(matches),
		})
	}
	return groups, nil
}

// MatchSheltersToRequests ranks requests across several shelters of one
// host. The result is flattened, sorted by distance and truncated to limit.
func MatchSheltersToRequests(shelters []models.ShelterOffer, requests []models.ShelterRequest, p Params) ([]RequestMatch, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	perShelter := Params{MaxDistanceKm: p.MaxDistanceKm, Limit: len(requests) + 1}
	all := make([]RequestMatch, 0)
	for _, s := range shelters {
		matches, err := MatchShelterToRequests(s, requests, perShelter)
		if err != nil {
			return nil, err
		}
		all = append(all, matches...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].exactKm < all[j].exactKm })
	if len(all) > p.Limit {
		all = all[:p.Limit]
	}
	return all, nil
}
