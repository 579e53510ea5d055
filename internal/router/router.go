package router

import (
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/handlers"
	"github.com/senyabanana/vendor-engagement/internal/middleware"
)

// Handlers - обработчики, из которых собираются маршруты.
type Handlers struct {
	Portal      *handlers.PortalHandler
	Assignments *handlers.AssignmentHandler
	RFQs        *handlers.RFQHandler
	Projects    *handlers.ProjectHandler
	Jobs        *handlers.JobsHandler
	Health      *handlers.HealthHandler
	Metrics     http.Handler
}

// InitRoutes собирает маршруты API сотрудников, портала поставщиков и метрик.
func InitRoutes(h Handlers, limiter *middleware.RateLimiter) http.Handler {
	mux := http.NewServeMux()

	portal := http.NewServeMux()
	portal.HandleFunc("GET /portal/assignments/{assignmentId}", h.Portal.GetAssignment)
	portal.HandleFunc("POST /portal/assignments/{assignmentId}/accept", h.Portal.AcceptAssignment)
	portal.HandleFunc("POST /portal/assignments/{assignmentId}/decline", h.Portal.DeclineAssignment)
	portal.HandleFunc("GET /portal/rfqs/{rfqId}/vendors/{vendorId}", h.Portal.GetRFQ)
	portal.HandleFunc("POST /portal/rfqs/{rfqId}/vendors/{vendorId}/quotes", h.Portal.SubmitQuote)
	if limiter != nil {
		mux.Handle("/portal/", limiter.Limit(portal))
	} else {
		mux.Handle("/portal/", portal)
	}

	health := h.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil, log.Default(), time.Second)
	}
	mux.HandleFunc("/api/ping", health.Ping)

	mux.HandleFunc("POST /api/projects/new", h.Projects.CreateProject)
	mux.HandleFunc("GET /api/projects/{projectId}/financials", h.Projects.GetFinancials)
	mux.HandleFunc("GET /api/projects/{projectId}/assignments", h.Assignments.ListProjectAssignments)
	mux.HandleFunc("DELETE /api/projects/{projectId}", h.Projects.DeleteProject)

	mux.HandleFunc("POST /api/assignments/new", h.Assignments.CreateAssignment)
	mux.HandleFunc("GET /api/assignments/{assignmentId}", h.Assignments.GetAssignment)
	mux.HandleFunc("PUT /api/assignments/{assignmentId}/{action}", h.Assignments.UpdateState)
	mux.HandleFunc("PATCH /api/assignments/{assignmentId}/costs", h.Assignments.UpdateCosts)

	mux.HandleFunc("POST /api/rfqs/new", h.RFQs.CreateRFQ)
	mux.HandleFunc("GET /api/rfqs/{rfqId}", h.RFQs.GetRFQ)
	mux.HandleFunc("PUT /api/rfqs/{rfqId}/send", h.RFQs.SendRFQ)
	mux.HandleFunc("PUT /api/rfqs/{rfqId}/winner", h.RFQs.SelectWinner)
	mux.HandleFunc("PUT /api/rfqs/{rfqId}/close", h.RFQs.CloseRFQ)
	mux.HandleFunc("GET /api/rfqs/{rfqId}/quotes", h.RFQs.ListQuotes)
	mux.HandleFunc("GET /api/rfqs/{rfqId}/stats", h.RFQs.QuoteStats)

	mux.HandleFunc("POST /api/jobs/daily", h.Jobs.RunDaily)

	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	return mux
}
