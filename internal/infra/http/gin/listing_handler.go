package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"propnest/internal/app/dto"
	listingsvc "propnest/internal/app/services/listing"
	domainlisting "propnest/internal/domain/listing"
	domainuser "propnest/internal/domain/user"
)

// ListingHTTP exposes listing endpoints.
type ListingHTTP interface {
	Create(c *gin.Context)
	Browse(c *gin.Context)
	Get(c *gin.Context)
	UploadPhoto(c *gin.Context)
	MarkSold(c *gin.Context)
}

type ListingHandler struct {
	Service *listingsvc.Service
	Logger  *slog.Logger
}

func (h ListingHandler) Create(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		PriceCents  int64  `json:"price_cents"`
		Currency    string `json:"currency"`
		City        string `json:"city"`
		Country     string `json:"country"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	lst, err := h.Service.Create(c.Request.Context(), domainuser.ID(p.ID), listingsvc.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		City:        req.City,
		Country:     req.Country,
	})
	if err != nil {
		switch {
		case errors.Is(err, domainlisting.ErrTitleRequired),
			errors.Is(err, domainlisting.ErrLocationRequired),
			errors.Is(err, domainlisting.ErrInvalidPrice):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logError("create listing failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "listing service unavailable"})
		}
		return
	}
	c.JSON(http.StatusCreated, newListingDTO(lst))
}

func (h ListingHandler) Browse(c *gin.Context) {
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	listings, err := h.Service.Browse(c.Request.Context(), domainlisting.BrowseParams{
		City:  strings.TrimSpace(c.Query("city")),
		Limit: limit,
	})
	if err != nil {
		h.logError("browse listings failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing service unavailable"})
		return
	}
	result := make([]dto.Listing, 0, len(listings))
	for _, lst := range listings {
		result = append(result, newListingDTO(lst))
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Get(c *gin.Context) {
	id := normalizeParam(c, "id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	lst, err := h.Service.ByID(c.Request.Context(), domainlisting.ID(id))
	if err != nil {
		if errors.Is(err, domainlisting.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.logError("load listing failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing service unavailable"})
		return
	}
	c.JSON(http.StatusOK, newListingDTO(lst))
}

// UploadPhoto accepts a multipart photo and attaches its object-store URL
// to the listing. Owner only.
func (h ListingHandler) UploadPhoto(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	id := normalizeParam(c, "id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()

	url, err := h.Service.AttachPhoto(c.Request.Context(), domainlisting.ID(id), domainuser.ID(p.ID), header.Filename, file, header.Header.Get("Content-Type"))
	if err != nil {
		switch {
		case errors.Is(err, domainlisting.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(err, listingsvc.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "not the listing owner"})
		default:
			h.logError("photo upload failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "photo upload failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func (h ListingHandler) MarkSold(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	id := normalizeParam(c, "id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	lst, err := h.Service.MarkSold(c.Request.Context(), domainlisting.ID(id), domainuser.ID(p.ID))
	if err != nil {
		switch {
		case errors.Is(err, domainlisting.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(err, listingsvc.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "not the listing owner"})
		case errors.Is(err, domainlisting.ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{"error": "listing is not active"})
		default:
			h.logError("mark sold failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "listing service unavailable"})
		}
		return
	}
	c.JSON(http.StatusOK, newListingDTO(lst))
}

func (h ListingHandler) logError(msg string, err error) {
	if h.Logger != nil {
		h.Logger.Error(msg, "error", err)
	}
}

func newListingDTO(lst *domainlisting.Listing) dto.Listing {
	return dto.Listing{
		ID:          string(lst.ID),
		OwnerID:     string(lst.Owner),
		Title:       lst.Title,
		Description: lst.Description,
		PriceCents:  lst.PriceCents,
		Currency:    lst.Currency,
		City:        lst.Location.City,
		Country:     lst.Location.Country,
		Photos:      lst.Photos,
		State:       string(lst.State),
		CreatedAt:   lst.CreatedAt,
		UpdatedAt:   lst.UpdatedAt,
	}
}

var _ ListingHTTP = (*ListingHandler)(nil)
