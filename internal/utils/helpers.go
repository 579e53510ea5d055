package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/senyabanana/vendor-engagement/internal/models"
)

// SendErrorResponse отправляет ошибку в формате JSON
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := models.ErrorResponse{
		StatusCode: statusCode,
		Message:    message,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Println(err)
	}
}

// SendJSON отправляет ответ в формате JSON
func SendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Println(err)
	}
}

// StatusForError сопоставляет вид ошибки с HTTP-статусом
func StatusForError(err error) int {
	var resp *models.ErrorResponse
	if errors.As(err, &resp) {
		return resp.StatusCode
	}

	switch models.KindOf(err) {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindTokenInvalid:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// SendServiceError логирует ошибку сервиса и отправляет соответствующий ответ.
// Текст инфраструктурных ошибок наружу не передаётся.
func SendServiceError(w http.ResponseWriter, logger *log.Logger, err error, fallback string) {
	logger.Println(err)

	status := StatusForError(err)
	if status == http.StatusInternalServerError {
		SendErrorResponse(w, status, fallback)
		return
	}
	SendErrorResponse(w, status, err.Error())
}

// ParseLimitOffset обрабатывает limit и offset
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("invalid limit parameter, must be a positive integer [0:50]")
		}
	} else {
		limit = 5
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter, must be a non-negative integer")
		}
	} else {
		offset = 0
	}

	return limit, offset, nil
}

// Paginate возвращает срез items по limit и offset
func Paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// Contains - функция для проверки допустимости перехода
func Contains[T comparable](valid []T, value T) bool {
	for _, v := range valid {
		if v == value {
			return true
		}
	}
	return false
}
