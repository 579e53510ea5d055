package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RFQState - статус запроса котировок.
type RFQState string

const (
	RFQDraft      RFQState = "draft"       // Черновик
	RFQInProgress RFQState = "in_progress" // Приглашения отправлены, идёт сбор котировок
	RFQClosed     RFQState = "closed"      // Срок истёк, победитель не выбран
	RFQDone       RFQState = "done"        // Победитель выбран
)

// DefaultCurrency используется, если валюта котировки не указана.
const DefaultCurrency = "USD"

// RFQ представляет запрос котировок у нескольких поставщиков.
type RFQ struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"projectId"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	ClosingDate   time.Time       `json:"closingDate"`
	State         RFQState        `json:"state"`
	VendorIDs     []string        `json:"vendorIds"`
	WinnerQuoteID string          `json:"winnerQuoteId,omitempty"`
	SentAt        *time.Time      `json:"sentAt,omitempty"`
	ClosedAt      *time.Time      `json:"closedAt,omitempty"`
	CreatedBy     string          `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Quotes        []VendorQuote   `json:"quotes,omitempty"`
}

// ProjectRef возвращает проект, владельцу которого уходят уведомления.
func (r *RFQ) ProjectRef() string {
	return r.ProjectID
}

// Invited проверяет, приглашён ли поставщик.
func (r *RFQ) Invited(vendorID string) bool {
	for _, id := range r.VendorIDs {
		if id == vendorID {
			return true
		}
	}
	return false
}

// Quote возвращает котировку по ID.
func (r *RFQ) Quote(quoteID string) *VendorQuote {
	for i := range r.Quotes {
		if r.Quotes[i].ID == quoteID {
			return &r.Quotes[i]
		}
	}
	return nil
}

// VendorQuote представляет ответ поставщика на запрос котировок.
type VendorQuote struct {
	ID           string          `json:"id"`
	RFQID        string          `json:"rfqId"`
	VendorID     string          `json:"vendorId"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	EstimateDate *time.Time      `json:"estimateDate,omitempty"`
	Note         string          `json:"note,omitempty"`
	IsWinner     bool            `json:"isWinner"`
	SubmittedAt  time.Time       `json:"submittedAt"`
}

// RFQRequest представляет структуру запроса для создания RFQ.
type RFQRequest struct {
	ProjectID   string          `json:"projectId"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	VendorIDs   []string        `json:"vendorIds"`
	ClosingDate time.Time       `json:"closingDate"`
}

// QuoteRequest представляет структуру запроса для подачи котировки.
type QuoteRequest struct {
	VendorID     string          `json:"vendorId"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	EstimateDate *time.Time      `json:"estimateDate"`
	Note         string          `json:"note"`
}

// RFQInvite - выданная поставщику ссылка на портал.
type RFQInvite struct {
	VendorID string    `json:"vendorId"`
	Token    string    `json:"token"`
	Expiry   time.Time `json:"expiry"`
}

// QuoteStats - справочная статистика по котировкам, без ранжирования.
type QuoteStats struct {
	QuoteCount  int             `json:"quoteCount"`
	VendorCount int             `json:"vendorCount"`
	LowestQuote decimal.Decimal `json:"lowestQuote"`
}

// PortalRFQ - представление RFQ для приглашённого поставщика.
type PortalRFQ struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	ClosingDate time.Time       `json:"closingDate"`
	State       RFQState        `json:"state"`
	CanQuote    bool            `json:"canQuote"`
	MyQuotes    []VendorQuote   `json:"myQuotes"`
}
