package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/models"
	"github.com/senyabanana/vendor-engagement/internal/services"
	"github.com/senyabanana/vendor-engagement/internal/utils"
)

// ProjectHandler - структура для обработки запросов по проектам.
type ProjectHandler struct {
	Service *services.ProjectService
	Logger  *log.Logger
	Timeout time.Duration
	Now     clock
}

// NewProjectHandler создаёт новый экземпляр ProjectHandler.
func NewProjectHandler(service *services.ProjectService, logger *log.Logger, timeout time.Duration) *ProjectHandler {
	return &ProjectHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
		Now:     systemClock,
	}
}

// CreateProject обрабатывает запросы для создания проекта.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only POST is allowed")
		return
	}

	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	var req models.ProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.CreateProject(ctx, req, h.Now())
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to create project")
		return
	}
	utils.SendJSON(w, http.StatusOK, p)
}

// GetFinancials обрабатывает запросы для получения финансовой сводки проекта.
func (h *ProjectHandler) GetFinancials(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	fin, err := h.Service.Financials(ctx, r.PathValue("projectId"))
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to calculate financials")
		return
	}
	utils.SendJSON(w, http.StatusOK, fin)
}

// DeleteProject обрабатывает запросы для каскадного удаления проекта.
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	result, err := h.Service.DeleteProjectCascade(ctx, r.PathValue("projectId"), r.URL.Query().Get("actor"))
	if err != nil {
		utils.SendServiceError(w, h.Logger, err, "failed to delete project")
		return
	}
	utils.SendJSON(w, http.StatusOK, result)
}
