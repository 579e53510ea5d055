package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssignmentState - статус заказ-наряда поставщика.
type AssignmentState string

const (
	AssignmentDraft     AssignmentState = "draft"     // Создан сотрудником
	AssignmentSent      AssignmentState = "sent"      // Отправлен поставщику
	AssignmentAccepted  AssignmentState = "accepted"  // Принят поставщиком
	AssignmentDeclined  AssignmentState = "declined"  // Отклонён поставщиком
	AssignmentCompleted AssignmentState = "completed" // Услуга оказана
	AssignmentCancelled AssignmentState = "cancelled" // Отменён
)

// AssignmentStates перечисляет все допустимые статусы.
var AssignmentStates = []AssignmentState{
	AssignmentDraft,
	AssignmentSent,
	AssignmentAccepted,
	AssignmentDeclined,
	AssignmentCompleted,
	AssignmentCancelled,
}

// Terminal сообщает, что из статуса нет выхода.
func (s AssignmentState) Terminal() bool {
	return s == AssignmentCompleted || s == AssignmentCancelled
}

// Valid проверяет, что статус входит в перечисление.
func (s AssignmentState) Valid() bool {
	for _, st := range AssignmentStates {
		if st == s {
			return true
		}
	}
	return false
}

// DefaultDeclineReason сохраняется, когда поставщик не указал причину отказа.
const DefaultDeclineReason = "No reason provided"

// VendorAssignment представляет заказ-наряд одного поставщика по проекту.
type VendorAssignment struct {
	ID              string              `json:"id"`
	ProjectID       string              `json:"projectId"`
	VendorID        string              `json:"vendorId"`
	VendorEmail     string              `json:"vendorEmail"`
	ServiceCategory string              `json:"serviceCategory"`
	State           AssignmentState     `json:"state"`
	EstimatedCost   decimal.Decimal     `json:"estimatedCost"`
	ActualCost      decimal.NullDecimal `json:"actualCost"`
	AccessToken     string              `json:"-"`
	TokenExpiry     *time.Time          `json:"tokenExpiry,omitempty"`
	DeclineReason   string              `json:"declineReason,omitempty"`
	Signature       []byte              `json:"-"`
	SignedAt        *time.Time          `json:"signedAt,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// TokenOwner возвращает идентификатор владельца токена портала.
func (a *VendorAssignment) TokenOwner() string {
	return AssignmentTokenOwner(a.ID)
}

// ProjectRef возвращает проект, владельцу которого уходят уведомления.
func (a *VendorAssignment) ProjectRef() string {
	return a.ProjectID
}

// AssignmentRequest представляет структуру запроса для создания заказ-наряда.
type AssignmentRequest struct {
	ProjectID       string           `json:"projectId"`
	VendorID        string           `json:"vendorId"`
	VendorEmail     string           `json:"vendorEmail"`
	ServiceCategory string           `json:"serviceCategory"`
	EstimatedCost   decimal.Decimal  `json:"estimatedCost"`
	ActualCost      *decimal.Decimal `json:"actualCost"`
}

// CostsRequest представляет структуру запроса для изменения стоимости.
type CostsRequest struct {
	EstimatedCost *decimal.Decimal `json:"estimatedCost"`
	ActualCost    *decimal.Decimal `json:"actualCost"`
}

// PortalAssignment - ограниченное представление заказ-наряда для поставщика.
// Не содержит сумм клиента и других поставщиков.
type PortalAssignment struct {
	ID              string              `json:"id"`
	ServiceCategory string              `json:"serviceCategory"`
	State           AssignmentState     `json:"state"`
	VendorPayment   decimal.NullDecimal `json:"vendorPayment"`
	EventName       string              `json:"eventName"`
	EventDate       *time.Time          `json:"eventDate,omitempty"`
	CanRespond      bool                `json:"canRespond"`
}
