package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Project представляет мероприятие, к которому привязаны поставщики.
type Project struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	OwnerID     string          `json:"ownerId"`
	EventDate   *time.Time      `json:"eventDate,omitempty"`
	ClientTotal decimal.Decimal `json:"clientTotal"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ProjectRequest представляет структуру запроса для создания проекта.
type ProjectRequest struct {
	Name        string          `json:"name"`
	OwnerID     string          `json:"ownerId"`
	EventDate   *time.Time      `json:"eventDate"`
	ClientTotal decimal.Decimal `json:"clientTotal"`
}

// Financials - сводка затрат и маржи по проекту.
type Financials struct {
	ProjectID          string          `json:"projectId"`
	AssignmentCount    int             `json:"assignmentCount"`
	TotalEstimatedCost decimal.Decimal `json:"totalEstimatedCost"`
	TotalActualCost    decimal.Decimal `json:"totalActualCost"`
	CostVariance       decimal.Decimal `json:"costVariance"`
	ClientTotal        decimal.Decimal `json:"clientTotal"`
	Margin             decimal.Decimal `json:"margin"`
	MarginPercent      decimal.Decimal `json:"marginPercent"`
}

// CascadeResult - количество удалённых записей при удалении проекта.
type CascadeResult struct {
	ProjectID   string `json:"projectId"`
	Assignments int64  `json:"assignments"`
	RFQs        int64  `json:"rfqs"`
	Tokens      int64  `json:"tokens"`
}
