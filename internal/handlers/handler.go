package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// clock возвращает текущее время в UTC. Подменяется в тестах.
type clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// decodeJSON читает тело запроса в dst.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func withTimeout(r *http.Request, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeout)
}
