package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"
	"github.com/senyabanana/vendor-engagement/internal/services"
	"github.com/senyabanana/vendor-engagement/internal/utils"
)

// AssignmentHandler - структура для обработки запросов сотрудников по заказ-нарядам.
type AssignmentHandler struct {
	Service *services.AssignmentService
	Logger  *log.Logger
	Timeout time.Duration
	Now     clock
}

// NewAssignmentHandler создаёт новый экземпляр AssignmentHandler.
func NewAssignmentHandler(service *services.AssignmentService, logger *log.Logger, timeout time.Duration) *AssignmentHandler {
	return &AssignmentHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
		Now:     systemClock,
	}
}

// stateResponse - ответ на смену статуса. Токен портала заполняется только при отправке.
type stateResponse struct {
	*models.VendorAssignment
	PortalToken string `json:"portalToken,omitempty"`
}

// CreateAssignment обрабатывает запросы для создания заказ-наряда.
func (h *AssignmentHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only POST is allowed")
		return
	}

	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	var req models.AssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.Service.CreateAssignment(ctx, req, r.URL.Query().Get("actor"), h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to create assignment")
		return
	}
	utils.SendJSON(w, http.StatusOK, a)
}

// GetAssignment обрабатывает запросы для получения заказ-наряда.
func (h *AssignmentHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	a, err := h.Service.GetAssignment(ctx, r.PathValue("assignmentId"))
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to fetch assignment")
		return
	}
	utils.SendJSON(w, http.StatusOK, a)
}

// ListProjectAssignments обрабатывает запросы для получения заказ-нарядов проекта.
func (h *AssignmentHandler) ListProjectAssignments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	limit, offset, err := utils.ParseLimitOffset(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	assignments, err := h.Service.ListProjectAssignments(ctx, r.PathValue("projectId"))
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to fetch assignments")
		return
	}
	utils.SendJSON(w, http.StatusOK, utils.Paginate(assignments, limit, offset))
}

type assignmentAction func(ctx context.Context, id, actor string, now time.Time) (*models.VendorAssignment, error)

// UpdateState обрабатывает PUT /api/assignments/{assignmentId}/{action}.
func (h *AssignmentHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}

	actions := map[string]assignmentAction{
		"send":     h.Service.SendWorkOrder,
		"resend":   h.Service.Resend,
		"cancel":   h.Service.Cancel,
		"complete": h.Service.MarkCompleted,
	}
	action, ok := actions[r.PathValue("action")]
	if !ok {
		utils.SendErrorResponse(w, http.StatusBadRequest, "unsupported action: "+r.PathValue("action"))
		return
	}

	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	a, err := action(ctx, r.PathValue("assignmentId"), r.URL.Query().Get("actor"), h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to update assignment")
		return
	}
	resp := stateResponse{VendorAssignment: a}
	if name := r.PathValue("action"); name == "send" || name == "resend" {
		resp.PortalToken = a.AccessToken
	}
	utils.SendJSON(w, http.StatusOK, resp)
}

// UpdateCosts обрабатывает запросы для изменения стоимости заказ-наряда.
func (h *AssignmentHandler) UpdateCosts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	var req models.CostsRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.Service.UpdateCosts(ctx, r.PathValue("assignmentId"), req, h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to update costs")
		return
	}
	utils.SendJSON(w, http.StatusOK, a)
}
