package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"
	"github.com/senyabanana/vendor-engagement/internal/services"
	"github.com/senyabanana/vendor-engagement/internal/utils"
)

// PortalHandler обслуживает публичный портал поставщиков. Доступ только по токену.
type PortalHandler struct {
	Assignments *services.AssignmentService
	RFQs        *services.RFQService
	Logger      *log.Logger
	Timeout     time.Duration
	Now         clock
}

// NewPortalHandler создаёт новый экземпляр PortalHandler.
func NewPortalHandler(assignments *services.AssignmentService, rfqs *services.RFQService, logger *log.Logger, timeout time.Duration) *PortalHandler {
	return &PortalHandler{
		Assignments: assignments,
		RFQs:        rfqs,
		Logger:      logger,
		Timeout:     timeout,
		Now:         systemClock,
	}
}

// GetAssignment показывает поставщику заказ-наряд и доступные действия.
func (h *PortalHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	id := r.PathValue("assignmentId")
	token := r.URL.Query().Get("token")

	view, err := h.Assignments.PortalAssignment(ctx, id, token, h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to load assignment")
		return
	}
	utils.SendJSON(w, http.StatusOK, view)
}

// AcceptAssignment принимает заказ-наряд от имени поставщика.
func (h *PortalHandler) AcceptAssignment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	var req models.PortalAcceptRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var signature []byte
	if req.Signature != "" {
		signature = []byte(req.Signature)
	}

	a, err := h.Assignments.VendorAccept(ctx, r.PathValue("assignmentId"), req.Token, signature, h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to accept assignment")
		return
	}
	utils.SendJSON(w, http.StatusOK, models.PortalAssignment{
		ID:              a.ID,
		ServiceCategory: a.ServiceCategory,
		State:           a.State,
		VendorPayment:   a.ActualCost,
	})
}

// DeclineAssignment отклоняет заказ-наряд от имени поставщика.
func (h *PortalHandler) DeclineAssignment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	var req models.PortalDeclineRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.Assignments.VendorDecline(ctx, r.PathValue("assignmentId"), req.Token, req.Reason, h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to decline assignment")
		return
	}
	utils.SendJSON(w, http.StatusOK, models.PortalAssignment{
		ID:              a.ID,
		ServiceCategory: a.ServiceCategory,
		State:           a.State,
		VendorPayment:   a.ActualCost,
	})
}

// GetRFQ показывает приглашённому поставщику RFQ и его котировки.
func (h *PortalHandler) GetRFQ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	view, err := h.RFQs.PortalRFQ(ctx, r.PathValue("rfqId"), r.PathValue("vendorId"), r.URL.Query().Get("token"), h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to load rfq")
		return
	}
	utils.SendJSON(w, http.StatusOK, view)
}

// SubmitQuote принимает котировку поставщика.
func (h *PortalHandler) SubmitQuote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	var req models.PortalQuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := h.RFQs.SubmitPortalQuote(ctx, r.PathValue("rfqId"), r.PathValue("vendorId"), req.Token, req.QuoteRequest, h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to submit quote")
		return
	}
	utils.SendJSON(w, http.StatusCreated, quote)
}
