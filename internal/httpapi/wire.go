package httpapi

import (
	"fmt"
	"time"

	"kopitiam/backend/internal/domain"
	"kopitiam/backend/internal/money"
)

// The REST surface carries money as decimal strings ("12.50"); everything
// behind this package works in integer cents. Conversion happens here and
// nowhere else.

type saleItemDetail struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	UnitPrice         string  `json:"unit_price"`
	QuantityTotal     int     `json:"quantity_total"`
	QuantityRemaining int     `json:"quantity_remaining"`
	TaxRate           float64 `json:"tax_rate,omitempty"`
	DiscountRate      float64 `json:"discount_rate,omitempty"`
}

type saleDetailResponse struct {
	ID        string           `json:"id"`
	TableCode string           `json:"table_code"`
	Status    string           `json:"status"`
	TotalPaid string           `json:"total_paid"`
	Items     []saleItemDetail `json:"items"`
	CreatedAt string           `json:"created_at"`
	ClosedAt  string           `json:"closed_at,omitempty"`
}

type saleItemCreateRequest struct {
	Name         string  `json:"name"`
	UnitPrice    string  `json:"unit_price"`
	Quantity     int     `json:"quantity"`
	TaxRate      float64 `json:"tax_rate,omitempty"`
	DiscountRate float64 `json:"discount_rate,omitempty"`
}

type saleCreateRequest struct {
	TableCode string                  `json:"table_code"`
	Items     []saleItemCreateRequest `json:"items"`
}

type sessionCreateRequest struct {
	SaleID string `json:"sale_id"`
}

type selectionRequest struct {
	Items []selectedItemRequest `json:"items"`
}

type selectedItemRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// splitUpdateRequest patches one split; only the fields present apply.
type splitUpdateRequest struct {
	Amount     *string `json:"amount,omitempty"`
	Method     *string `json:"method,omitempty"`
	Reference  *string `json:"reference,omitempty"`
	ToggleLock bool    `json:"toggle_lock,omitempty"`
}

type summaryResponse struct {
	SaleTotal          string `json:"sale_total"`
	TotalPaid          string `json:"total_paid"`
	RemainingTotal     string `json:"remaining_total"`
	SelectedItemsTotal string `json:"selected_items_total"`
	IsFullyPaid        bool   `json:"is_fully_paid"`
	IsOverpaid         bool   `json:"is_overpaid"`
}

type breakdownResponse struct {
	BaseTotal      string            `json:"base_total"`
	TaxTotal       string            `json:"tax_total"`
	DiscountTotal  string            `json:"discount_total"`
	FinalTotal     string            `json:"final_total"`
	TaxByItem      map[string]string `json:"tax_by_item,omitempty"`
	DiscountByItem map[string]string `json:"discount_by_item,omitempty"`
}

type splitDetail struct {
	ID             string `json:"id"`
	Amount         string `json:"amount"`
	Method         string `json:"method,omitempty"`
	Reference      string `json:"reference,omitempty"`
	Locked         bool   `json:"locked"`
	ManuallyEdited bool   `json:"manually_edited"`
	Submitted      bool   `json:"submitted"`
	SubmitError    string `json:"submit_error,omitempty"`
}

type sessionStateResponse struct {
	SessionID  string                 `json:"session_id"`
	SaleID     string                 `json:"sale_id"`
	Summary    summaryResponse        `json:"summary"`
	Breakdown  breakdownResponse      `json:"breakdown"`
	Selected   []domain.SelectedItem  `json:"selected_items"`
	Splits     []splitDetail          `json:"splits"`
	Validation domain.SplitValidation `json:"validation"`
}

type paymentDetail struct {
	ID        string               `json:"id"`
	SaleID    string               `json:"sale_id"`
	Method    string               `json:"method"`
	Amount    string               `json:"amount"`
	Reference string               `json:"reference,omitempty"`
	Items     []domain.PaymentLine `json:"items,omitempty"`
	CreatedAt string               `json:"created_at"`
}

type submitResponse struct {
	SessionID      string                     `json:"session_id"`
	SaleID         string                     `json:"sale_id"`
	Blocked        bool                       `json:"blocked"`
	BlockingReason string                     `json:"blocking_reason,omitempty"`
	Statuses       []domain.SubmitSplitStatus `json:"statuses"`
	SaleFullyPaid  bool                       `json:"sale_fully_paid"`
	State          *sessionStateResponse      `json:"state,omitempty"`
}

func toSaleDetail(sale *domain.Sale) saleDetailResponse {
	items := make([]saleItemDetail, 0, len(sale.Items))
	for _, item := range sale.Items {
		items = append(items, saleItemDetail{
			ID:                item.ID,
			Name:              item.Name,
			UnitPrice:         money.FormatDecimal(item.UnitPriceCents),
			QuantityTotal:     item.QuantityTotal,
			QuantityRemaining: item.QuantityRemaining,
			TaxRate:           item.TaxRate,
			DiscountRate:      item.DiscountRate,
		})
	}

	resp := saleDetailResponse{
		ID:        sale.ID,
		TableCode: sale.TableCode,
		Status:    sale.Status,
		TotalPaid: money.FormatDecimal(sale.TotalPaidCents),
		Items:     items,
		CreatedAt: sale.CreatedAt.Format(time.RFC3339),
	}
	if sale.ClosedAt != nil {
		resp.ClosedAt = sale.ClosedAt.Format(time.RFC3339)
	}
	return resp
}

func fromSaleCreateRequest(req saleCreateRequest) (domain.Sale, error) {
	items := make([]domain.SaleItem, 0, len(req.Items))
	for i, line := range req.Items {
		priceCents, err := money.ParseDecimal(line.UnitPrice)
		if err != nil {
			return domain.Sale{}, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, domain.SaleItem{
			Name:           line.Name,
			UnitPriceCents: priceCents,
			QuantityTotal:  line.Quantity,
			TaxRate:        line.TaxRate,
			DiscountRate:   line.DiscountRate,
		})
	}
	return domain.Sale{TableCode: req.TableCode, Items: items}, nil
}

func toSessionState(state domain.SessionState) sessionStateResponse {
	splitDetails := make([]splitDetail, 0, len(state.Splits))
	for _, split := range state.Splits {
		splitDetails = append(splitDetails, splitDetail{
			ID:             split.ID,
			Amount:         money.FormatDecimal(split.AmountCents),
			Method:         string(split.Method),
			Reference:      split.Reference,
			Locked:         split.Locked,
			ManuallyEdited: split.ManuallyEdited,
			Submitted:      split.Submitted,
			SubmitError:    split.SubmitError,
		})
	}

	return sessionStateResponse{
		SessionID: state.SessionID,
		SaleID:    state.SaleID,
		Summary: summaryResponse{
			SaleTotal:          money.FormatDecimal(state.Summary.SaleTotalCents),
			TotalPaid:          money.FormatDecimal(state.Summary.TotalPaidCents),
			RemainingTotal:     money.FormatDecimal(state.Summary.RemainingTotalCents),
			SelectedItemsTotal: money.FormatDecimal(state.Summary.SelectedItemsTotalCents),
			IsFullyPaid:        state.Summary.IsFullyPaid,
			IsOverpaid:         state.Summary.IsOverpaid,
		},
		Breakdown: breakdownResponse{
			BaseTotal:      money.FormatDecimal(state.Breakdown.BaseTotalCents),
			TaxTotal:       money.FormatDecimal(state.Breakdown.TaxTotalCents),
			DiscountTotal:  money.FormatDecimal(state.Breakdown.DiscountTotalCents),
			FinalTotal:     money.FormatDecimal(state.Breakdown.FinalTotalCents),
			TaxByItem:      formatCentsMap(state.Breakdown.TaxByItem),
			DiscountByItem: formatCentsMap(state.Breakdown.DiscountByItem),
		},
		Selected:   state.Selected,
		Splits:     splitDetails,
		Validation: state.Validation,
	}
}

func toPaymentDetails(payments []domain.Payment) []paymentDetail {
	out := make([]paymentDetail, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentDetail{
			ID:        p.ID,
			SaleID:    p.SaleID,
			Method:    string(p.Method),
			Amount:    money.FormatDecimal(p.AmountCents),
			Reference: p.Reference,
			Items:     p.Items,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

func toSubmitResponse(resp domain.SubmitResponse) submitResponse {
	out := submitResponse{
		SessionID:      resp.SessionID,
		SaleID:         resp.SaleID,
		Blocked:        resp.Blocked,
		BlockingReason: resp.BlockingReason,
		Statuses:       resp.Statuses,
		SaleFullyPaid:  resp.SaleFullyPaid,
	}
	if resp.State != nil {
		state := toSessionState(*resp.State)
		out.State = &state
	}
	return out
}

func formatCentsMap(cents map[string]int64) map[string]string {
	if len(cents) == 0 {
		return nil
	}
	out := make(map[string]string, len(cents))
	for key, val := range cents {
		out[key] = money.FormatDecimal(val)
	}
	return out
}
