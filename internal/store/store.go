package store

import (
	"context"
	"errors"

	"kopitiam/backend/internal/domain"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidPayment = errors.New("invalid payment")
	ErrSaleClosed     = errors.New("sale is closed")
)

// Repository is the sale data source and payment sink the engine's service
// layer talks to. RecordPayment and ApplySelectionPaid are the only writers
// of quantity_remaining and total_paid; the engine itself never mutates
// sale state directly.
type Repository interface {
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, saleID string) (*domain.Sale, error)
	ListOpenSales(ctx context.Context, limit int) ([]domain.Sale, error)
	RecordPayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	ListPayments(ctx context.Context, saleID string) ([]domain.Payment, error)
	ApplySelectionPaid(ctx context.Context, saleID string, lines []domain.PaymentLine) (*domain.Sale, error)
}
