package models

// PortalAcceptRequest - тело запроса поставщика на принятие заказ-наряда.
type PortalAcceptRequest struct {
	Token     string `json:"token"`
	Signature string `json:"signature"`
}

// PortalDeclineRequest - тело запроса поставщика на отказ.
type PortalDeclineRequest struct {
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

// PortalQuoteRequest - котировка, поданная через портал.
type PortalQuoteRequest struct {
	Token string `json:"token"`
	QuoteRequest
}
