package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"
	"github.com/senyabanana/vendor-engagement/internal/services"
	"github.com/senyabanana/vendor-engagement/internal/utils"
)

// RFQHandler - структура для обработки запросов сотрудников по RFQ.
type RFQHandler struct {
	Service *services.RFQService
	Logger  *log.Logger
	Timeout time.Duration
	Now     clock
}

// NewRFQHandler создаёт новый экземпляр RFQHandler.
func NewRFQHandler(service *services.RFQService, logger *log.Logger, timeout time.Duration) *RFQHandler {
	return &RFQHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
		Now:     systemClock,
	}
}

// sendRFQResponse - ответ на рассылку RFQ.
type sendRFQResponse struct {
	RFQ     *models.RFQ        `json:"rfq"`
	Invites []models.RFQInvite `json:"invites"`
}

// CreateRFQ обрабатывает запросы для создания RFQ.
func (h *RFQHandler) CreateRFQ(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only POST is allowed")
		return
	}

	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	var req models.RFQRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rfq, err := h.Service.CreateRFQ(ctx, req, r.URL.Query().Get("actor"), h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to create rfq")
		return
	}
	utils.SendJSON(w, http.StatusOK, rfq)
}

// GetRFQ обрабатывает запросы для получения RFQ с котировками.
func (h *RFQHandler) GetRFQ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	rfq, err := h.Service.GetRFQ(ctx, r.PathValue("rfqId"))
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to fetch rfq")
		return
	}
	utils.SendJSON(w, http.StatusOK, rfq)
}

// SendRFQ обрабатывает запросы для рассылки приглашений.
func (h *RFQHandler) SendRFQ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	rfq, invites, err := h.Service.SendRFQ(ctx, r.PathValue("rfqId"), r.URL.Query().Get("actor"), h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to send rfq")
		return
	}
	utils.SendJSON(w, http.StatusOK, sendRFQResponse{RFQ: rfq, Invites: invites})
}

// SelectWinner обрабатывает запросы для выбора победителя.
func (h *RFQHandler) SelectWinner(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	quoteID := r.URL.Query().Get("quoteId")
	if quoteID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "quoteId is required")
		return
	}

	rfq, err := h.Service.SelectWinner(ctx, r.PathValue("rfqId"), quoteID, r.URL.Query().Get("actor"), h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to select winner")
		return
	}
	utils.SendJSON(w, http.StatusOK, rfq)
}

// CloseRFQ обрабатывает запросы для досрочного закрытия RFQ.
func (h *RFQHandler) CloseRFQ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	rfq, err := h.Service.CloseRFQ(ctx, r.PathValue("rfqId"), r.URL.Query().Get("actor"), h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to close rfq")
		return
	}
	utils.SendJSON(w, http.StatusOK, rfq)
}

// ListQuotes обрабатывает запросы для получения котировок. current=true оставляет последнюю котировку поставщика.
func (h *RFQHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	rfqID := r.PathValue("rfqId")
	var (
		quotes []models.VendorQuote
		err    error
	)
	if r.URL.Query().Get("current") == "true" {
		quotes, err = h.Service.CurrentQuotes(ctx, rfqID)
	} else {
		quotes, err = h.Service.ListQuotes(ctx, rfqID)
	}
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to fetch quotes")
		return
	}
	if quotes == nil {
		quotes = []models.VendorQuote{}
	}
	utils.SendJSON(w, http.StatusOK, quotes)
}

// QuoteStats обрабатывает запросы для получения статистики котировок.
func (h *RFQHandler) QuoteStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	stats, err := h.Service.QuoteStats(ctx, r.PathValue("rfqId"))
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to fetch quote stats")
		return
	}
	utils.SendJSON(w, http.StatusOK, stats)
}
