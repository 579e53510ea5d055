package models

import "time"

// DefaultTokenTTLDays - срок жизни токена портала по умолчанию.
const DefaultTokenTTLDays = 30

// AccessToken - секрет, привязанный к одной записи.
type AccessToken struct {
	OwnerID  string    `json:"ownerId"`
	Token    string    `json:"-"`
	Expiry   time.Time `json:"expiry"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Tokenable реализуют сущности, к которым выдаётся доступ через портал.
type Tokenable interface {
	TokenOwner() string
}

// Notifiable реализуют сущности, о переходах которых уведомляется владелец проекта.
type Notifiable interface {
	ProjectRef() string
}

// AssignmentTokenOwner формирует владельца токена для заказ-наряда.
func AssignmentTokenOwner(assignmentID string) string {
	return "assignment:" + assignmentID
}

// RFQInviteTokenOwner формирует владельца токена для приглашения поставщика в RFQ.
func RFQInviteTokenOwner(rfqID, vendorID string) string {
	return "rfq:" + rfqID + ":vendor:" + vendorID
}

// RFQInviteRef ссылается на приглашение поставщика в RFQ.
type RFQInviteRef struct {
	RFQID    string
	VendorID string
}

// TokenOwner возвращает идентификатор владельца токена приглашения.
func (r RFQInviteRef) TokenOwner() string {
	return RFQInviteTokenOwner(r.RFQID, r.VendorID)
}
