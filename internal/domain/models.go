package domain

import "time"

// PaymentMethod is the closed set of tender types the payment screen offers.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodPOS          PaymentMethod = "POS"
	MethodCardTransfer PaymentMethod = "CARD_TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodPOS, MethodCardTransfer:
		return true
	default:
		return false
	}
}

const (
	SaleStatusOpen = "open"
	SaleStatusPaid = "paid"
)

type SaleItem struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	UnitPriceCents    int64   `json:"unit_price_cents"`
	QuantityTotal     int     `json:"quantity_total"`
	QuantityRemaining int     `json:"quantity_remaining"`
	TaxRate           float64 `json:"tax_rate,omitempty"`
	DiscountRate      float64 `json:"discount_rate,omitempty"`
}

type Sale struct {
	ID             string     `json:"id"`
	TableCode      string     `json:"table_code"`
	Status         string     `json:"status"`
	TotalPaidCents int64      `json:"total_paid_cents"`
	Items          []SaleItem `json:"items"`
	CreatedAt      time.Time  `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
}

// SelectedItem is the cashier's intent to take payment for Quantity units of
// ItemID. The summary calculator clamps it to the item's remaining quantity.
type SelectedItem struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// SaleSummary is derived from (items, selection, totalPaid) on every change
// and never mutated in place.
type SaleSummary struct {
	SaleTotalCents          int64 `json:"sale_total_cents"`
	TotalPaidCents          int64 `json:"total_paid_cents"`
	RemainingTotalCents     int64 `json:"remaining_total_cents"`
	SelectedItemsTotalCents int64 `json:"selected_items_total_cents"`
	IsFullyPaid             bool  `json:"is_fully_paid"`
	IsOverpaid              bool  `json:"is_overpaid"`
}

type TaxDiscountBreakdown struct {
	BaseTotalCents     int64            `json:"base_total_cents"`
	TaxTotalCents      int64            `json:"tax_total_cents"`
	DiscountTotalCents int64            `json:"discount_total_cents"`
	FinalTotalCents    int64            `json:"final_total_cents"`
	TaxByItem          map[string]int64 `json:"tax_by_item,omitempty"`
	DiscountByItem     map[string]int64 `json:"discount_by_item,omitempty"`
}

// PaymentSplit is one leg of a possibly multi-tender payment.
//
// ManuallyEdited is the authoritative exclude-from-redistribution flag.
// Locked is the user-facing pin: locking also marks the split manually
// edited so its current amount holds; unlocking clears both and returns
// the split to the auto pool.
type PaymentSplit struct {
	ID             string        `json:"id"`
	AmountCents    int64         `json:"amount_cents"`
	Method         PaymentMethod `json:"method,omitempty"`
	Reference      string        `json:"reference,omitempty"`
	Locked         bool          `json:"locked"`
	ManuallyEdited bool          `json:"manually_edited"`
	Submitted      bool          `json:"submitted"`
	SubmitError    string        `json:"submit_error,omitempty"`
}

type SplitResult struct {
	SplitID string `json:"split_id"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}

type SplitValidation struct {
	IsBlocking          bool          `json:"is_blocking"`
	BlockingReason      string        `json:"blocking_reason,omitempty"`
	SplitResults        []SplitResult `json:"split_results"`
	SubmittableSplitIDs []string      `json:"submittable_split_ids"`
}

type PaymentLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Payment is the persisted record of one successfully submitted split.
type Payment struct {
	ID          string        `json:"id"`
	SaleID      string        `json:"sale_id"`
	SessionID   string        `json:"session_id,omitempty"`
	SplitID     string        `json:"split_id"`
	Method      PaymentMethod `json:"method"`
	AmountCents int64         `json:"amount_cents"`
	Reference   string        `json:"reference,omitempty"`
	Items       []PaymentLine `json:"items,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

type SessionState struct {
	SessionID  string               `json:"session_id"`
	SaleID     string               `json:"sale_id"`
	Summary    SaleSummary          `json:"summary"`
	Breakdown  TaxDiscountBreakdown `json:"breakdown"`
	Selected   []SelectedItem       `json:"selected_items"`
	Splits     []PaymentSplit       `json:"splits"`
	Validation SplitValidation      `json:"validation"`
}

type SubmitSplitStatus struct {
	SplitID   string `json:"split_id"`
	Status    string `json:"status"`
	PaymentID string `json:"payment_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

const (
	SubmitStatusPaid   = "paid"
	SubmitStatusFailed = "failed"
)

type SubmitResponse struct {
	SessionID      string              `json:"session_id"`
	SaleID         string              `json:"sale_id"`
	Blocked        bool                `json:"blocked"`
	BlockingReason string              `json:"blocking_reason,omitempty"`
	Statuses       []SubmitSplitStatus `json:"statuses"`
	SaleFullyPaid  bool                `json:"sale_fully_paid"`
	State          *SessionState       `json:"state,omitempty"`
}
