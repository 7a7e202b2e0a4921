package handler

import (
	"net/http"
	"strconv"
	"time"

	"shelterlink/backend/internal/apperr"
	"shelterlink/backend/internal/matching"
	"shelterlink/backend/internal/models"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type createShelterBody struct {
	Title         string   `json:"title" binding:"max=200"`
	Latitude      *float64 `json:"latitude" binding:"required,latitude"`
	Longitude     *float64 `json:"longitude" binding:"required,longitude"`
	AvailableFrom string   `json:"availableFrom" binding:"required,datetime=2006-01-02"`
	AvailableTo   *string  `json:"availableTo" binding:"omitempty,datetime=2006-01-02"`
	Capacity      int      `json:"capacity" binding:"required,gt=0"`
	Tags          []string `json:"tags" binding:"max=20,dive,max=40"`
}

type createRequestBody struct {
	Latitude       *float64 `json:"latitude" binding:"required,latitude"`
	Longitude      *float64 `json:"longitude" binding:"required,longitude"`
	Date           string   `json:"date" binding:"required,datetime=2006-01-02"`
	NumberOfPeople int      `json:"numberOfPeople" binding:"required,gt=0"`
	Description    string   `json:"description" binding:"max=2000"`
}

// parseDate reads a date already checked by the datetime binding.
func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func (h *Handler) CreateShelter(c *gin.Context) {
	if role := currentRole(c); role != models.RoleHost && role != models.RoleAdmin {
		h.respondError(c, apperr.Forbidden("only hosts can offer shelter"), nil)
		return
	}
	var body createShelterBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.bindError(c, err)
		return
	}

	shelter := &models.ShelterOffer{
		Title:         body.Title,
		Latitude:      body.Latitude,
		Longitude:     body.Longitude,
		AvailableFrom: parseDate(body.AvailableFrom),
		Capacity:      body.Capacity,
		Tags:          body.Tags,
	}
	if body.AvailableTo != nil {
		to := parseDate(*body.AvailableTo)
		shelter.AvailableTo = &to
	}
	if err := h.Matching.CreateShelter(c.Request.Context(), currentUser(c), shelter); err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, shelter)
}

func (h *Handler) CreateRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.bindError(c, err)
		return
	}

	req := &models.ShelterRequest{
		Latitude:       body.Latitude,
		Longitude:      body.Longitude,
		Date:           parseDate(body.Date),
		NumberOfPeople: body.NumberOfPeople,
		Description:    body.Description,
	}
	if err := h.Matching.CreateRequest(c.Request.Context(), currentUser(c), req); err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// matchParams reads maxDistance and limit from the query string.
func (h *Handler) matchParams(c *gin.Context) (matching.Params, error) {
	var maxKm *float64
	var limit *int
	if raw, ok := c.GetQuery("maxDistance"); ok {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return matching.Params{}, apperr.InvalidParameter("maxDistance must be a number")
		}
		maxKm = &v
	}
	if raw, ok := c.GetQuery("limit"); ok {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return matching.Params{}, apperr.InvalidParameter("limit must be an integer")
		}
		limit = &v
	}
	p := h.Matching.ParamsFrom(maxKm, limit)
	return p, p.Validate()
}

func (h *Handler) SeekerMatches(c *gin.Context) {
	p, err := h.matchParams(c)
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	res, err := h.Matching.MatchesForSeeker(c.Request.Context(), currentUser(c), p)
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RequestMatches(c *gin.Context) {
	p, err := h.matchParams(c)
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	matches, err := h.Matching.MatchesForRequest(c.Request.Context(), currentUser(c), c.Param("requestId"), p)
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request_id": c.Param("requestId"), "matches": matches, "match_count": len(matches)})
}

func (h *Handler) ShelterMatches(c *gin.Context) {
	p, err := h.matchParams(c)
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	matches, err := h.Matching.RequestsForShelter(c.Request.Context(), currentUser(c), c.Param("shelterId"), p)
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shelter_id": c.Param("shelterId"), "matches": matches, "match_count": len(matches)})
}

func (h *Handler) HostMatches(c *gin.Context) {
	p, err := h.matchParams(c)
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	matches, err := h.Matching.MatchesForHost(c.Request.Context(), currentUser(c), p)
	if err != nil {
		h.respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches, "total_matches": len(matches), "max_distance_km": p.MaxDistanceKm})
}
