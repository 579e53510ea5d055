// Package finance считает затраты и маржу проекта по его заказ-нарядам.
package finance

import (
	"github.com/senyabanana/vendor-engagement/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Rollup агрегирует стоимость по неотменённым заказ-нарядам.
// Незаданная фактическая стоимость считается нулём. При нулевой сумме клиента процент маржи равен нулю.
func Rollup(projectID string, clientTotal decimal.Decimal, assignments []models.VendorAssignment) models.Financials {
	fin := models.Financials{
		ProjectID:          projectID,
		TotalEstimatedCost: decimal.Zero,
		TotalActualCost:    decimal.Zero,
		ClientTotal:        clientTotal,
	}

	for _, a := range assignments {
		if a.State == models.AssignmentCancelled {
			continue
		}
		fin.AssignmentCount++
		fin.TotalEstimatedCost = fin.TotalEstimatedCost.Add(a.EstimatedCost)
		if a.ActualCost.Valid {
			fin.TotalActualCost = fin.TotalActualCost.Add(a.ActualCost.Decimal)
		}
	}

	fin.CostVariance = fin.TotalActualCost.Sub(fin.TotalEstimatedCost)
	fin.Margin = clientTotal.Sub(fin.TotalActualCost)
	fin.MarginPercent = decimal.Zero
	if !clientTotal.IsZero() {
		fin.MarginPercent = fin.Margin.Div(clientTotal).Mul(hundred).Round(2)
	}
	return fin
}
