package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"propnest/internal/app/dto"
	inquirysvc "propnest/internal/app/services/inquiry"
	domaininquiry "propnest/internal/domain/inquiry"
	domainlisting "propnest/internal/domain/listing"
	domainuser "propnest/internal/domain/user"
)

// InquiryHTTP exposes the inquiry/messaging endpoints.
type InquiryHTTP interface {
	Create(c *gin.Context)
	Inbox(c *gin.Context)
	Get(c *gin.Context)
	Reply(c *gin.Context)
}

type InquiryHandler struct {
	Service *inquirysvc.Service
	Logger  *slog.Logger
}

// Create opens a new inquiry against a listing. The buyer identity always
// comes from the authenticated principal, never the request body.
func (h InquiryHandler) Create(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		PropertyID string `json:"propertyId"`
		Message    string `json:"message"`
		BuyerPhone string `json:"buyerPhone"`
		BuyerEmail string `json:"buyerEmail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if req.PropertyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "propertyId is required"})
		return
	}
	inq, err := h.Service.Create(c.Request.Context(), inquirysvc.CreateParams{
		ListingID:  domainlisting.ID(req.PropertyID),
		BuyerID:    domainuser.ID(p.ID),
		Text:       req.Message,
		BuyerPhone: req.BuyerPhone,
		BuyerEmail: req.BuyerEmail,
	})
	if err != nil {
		h.respondError(c, err, "create inquiry", "property_id", req.PropertyID, "buyer_id", p.ID)
		return
	}
	c.JSON(http.StatusCreated, newInquiryDTO(inq))
}

// Inbox lists the caller's owner-side inquiries, newest first.
func (h InquiryHandler) Inbox(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	items, err := h.Service.OwnerInbox(c.Request.Context(), domainuser.ID(p.ID))
	if err != nil {
		h.respondError(c, err, "load inbox", "owner_id", p.ID)
		return
	}
	result := make([]dto.InboxItem, 0, len(items))
	for _, item := range items {
		result = append(result, dto.InboxItem{
			Inquiry: newInquiryDTO(item.Inquiry),
			Listing: dto.ListingSummary{
				ID:           string(item.Listing.ID),
				Title:        item.Listing.Title,
				PriceCents:   item.Listing.PriceCents,
				Currency:     item.Listing.Currency,
				City:         item.Listing.Location.City,
				Country:      item.Listing.Location.Country,
				PrimaryImage: item.Listing.PrimaryPhoto,
			},
			Buyer: dto.BuyerSummary{
				ID:    string(item.Buyer.ID),
				Name:  item.Buyer.Name,
				Email: item.Buyer.Email,
			},
		})
	}
	c.JSON(http.StatusOK, result)
}

// Get returns one conversation to a participant.
func (h InquiryHandler) Get(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	id := normalizeParam(c, "id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "inquiry id is required"})
		return
	}
	inq, err := h.Service.Get(c.Request.Context(), domaininquiry.ID(id), domainuser.ID(p.ID))
	if err != nil {
		h.respondError(c, err, "load inquiry", "inquiry_id", id, "caller_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, newInquiryDTO(inq))
}

// Reply appends a message; the full updated transcript comes back so the
// replying client renders without another round trip.
func (h InquiryHandler) Reply(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	id := normalizeParam(c, "id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "inquiry id is required"})
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	inq, err := h.Service.Reply(c.Request.Context(), domaininquiry.ID(id), domainuser.ID(p.ID), req.Text)
	if err != nil {
		h.respondError(c, err, "reply", "inquiry_id", id, "author_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, newInquiryDTO(inq))
}

func (h InquiryHandler) respondError(c *gin.Context, err error, action string, attrs ...any) {
	switch {
	case errors.Is(err, domaininquiry.ErrNotFound), errors.Is(err, domainlisting.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domaininquiry.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
	case errors.Is(err, domaininquiry.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "message text is required"})
	case errors.Is(err, domaininquiry.ErrSelfInquiry):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot inquire about your own listing"})
	default:
		if h.Logger != nil {
			h.Logger.Error("inquiry call failed", append([]any{"action", action, "error", err}, attrs...)...)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "inquiry service unavailable"})
	}
}

func newInquiryDTO(inq *domaininquiry.Inquiry) dto.Inquiry {
	messages := make([]dto.Message, 0, len(inq.Messages))
	for _, msg := range inq.Messages {
		messages = append(messages, dto.Message{
			Sender:    string(msg.Sender),
			Text:      msg.Text,
			Timestamp: msg.SentAt,
		})
	}
	return dto.Inquiry{
		ID:         string(inq.ID),
		ListingID:  string(inq.ListingID),
		BuyerID:    string(inq.BuyerID),
		OwnerID:    string(inq.OwnerID),
		BuyerPhone: inq.BuyerPhone,
		BuyerEmail: inq.BuyerEmail,
		Messages:   messages,
		Status:     string(inq.Status),
		CreatedAt:  inq.CreatedAt,
		UpdatedAt:  inq.UpdatedAt,
	}
}

var _ InquiryHTTP = (*InquiryHandler)(nil)
