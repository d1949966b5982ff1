// Package summary computes derived monetary figures for a sale. Everything
// here is a pure function of its inputs: no state, no side effects, safe to
// recompute on every change.
package summary

import (
	"math"

	"kopitiam/backend/internal/domain"
)

// Compute derives the sale totals from the raw sale state. A nil item list
// (sale not yet loaded) yields a zero summary rather than an error.
//
// The payable quantity of each selection is clamped to the item's remaining
// quantity, so the engine never charges for more than what is still unpaid.
// Selections referencing unknown item ids contribute nothing.
func Compute(saleItems []domain.SaleItem, selectedItems []domain.SelectedItem, totalPaidCents int64) domain.SaleSummary {
	if saleItems == nil {
		return domain.SaleSummary{}
	}

	byID := make(map[string]domain.SaleItem, len(saleItems))
	saleTotal := int64(0)
	for _, item := range saleItems {
		byID[item.ID] = item
		saleTotal += item.UnitPriceCents * int64(item.QuantityTotal)
	}

	selectedTotal := int64(0)
	for _, sel := range selectedItems {
		item, ok := byID[sel.ItemID]
		if !ok {
			continue
		}
		selectedTotal += item.UnitPriceCents * int64(payableQuantity(sel, item))
	}

	remaining := saleTotal - totalPaidCents
	if remaining < 0 {
		remaining = 0
	}

	return domain.SaleSummary{
		SaleTotalCents:          saleTotal,
		TotalPaidCents:          totalPaidCents,
		RemainingTotalCents:     remaining,
		SelectedItemsTotalCents: selectedTotal,
		IsFullyPaid:             remaining == 0,
		IsOverpaid:              totalPaidCents > saleTotal,
	}
}

// ComputeBreakdown accumulates tax and discount across the selected items.
// Rates are fractions (0.10 = 10%); rounding happens once per item at the
// rate-application boundary, never on running totals.
func ComputeBreakdown(saleItems []domain.SaleItem, selectedItems []domain.SelectedItem) domain.TaxDiscountBreakdown {
	if saleItems == nil {
		return domain.TaxDiscountBreakdown{}
	}

	byID := make(map[string]domain.SaleItem, len(saleItems))
	for _, item := range saleItems {
		byID[item.ID] = item
	}

	breakdown := domain.TaxDiscountBreakdown{
		TaxByItem:      make(map[string]int64),
		DiscountByItem: make(map[string]int64),
	}

	for _, sel := range selectedItems {
		item, ok := byID[sel.ItemID]
		if !ok {
			continue
		}
		base := item.UnitPriceCents * int64(payableQuantity(sel, item))
		breakdown.BaseTotalCents += base

		if item.TaxRate > 0 {
			tax := int64(math.Round(float64(base) * item.TaxRate))
			breakdown.TaxByItem[item.ID] += tax
			breakdown.TaxTotalCents += tax
		}
		if item.DiscountRate > 0 {
			discount := int64(math.Round(float64(base) * item.DiscountRate))
			breakdown.DiscountByItem[item.ID] += discount
			breakdown.DiscountTotalCents += discount
		}
	}

	breakdown.FinalTotalCents = breakdown.BaseTotalCents + breakdown.TaxTotalCents - breakdown.DiscountTotalCents
	return breakdown
}

// SelectAllRemaining builds the selection covering every unpaid unit of the
// sale, the default state of the payment screen.
func SelectAllRemaining(saleItems []domain.SaleItem) []domain.SelectedItem {
	selected := make([]domain.SelectedItem, 0, len(saleItems))
	for _, item := range saleItems {
		if item.QuantityRemaining < 1 {
			continue
		}
		selected = append(selected, domain.SelectedItem{ItemID: item.ID, Quantity: item.QuantityRemaining})
	}
	return selected
}

func payableQuantity(sel domain.SelectedItem, item domain.SaleItem) int {
	qty := sel.Quantity
	if qty < 0 {
		qty = 0
	}
	if qty > item.QuantityRemaining {
		qty = item.QuantityRemaining
	}
	return qty
}
