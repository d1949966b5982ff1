package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"kopitiam/backend/internal/domain"
	"kopitiam/backend/internal/store"
	"kopitiam/backend/internal/xid"
)

type Store struct {
	mu             sync.RWMutex
	salesByID      map[string]*domain.Sale
	paymentsBySale map[string][]domain.Payment
}

func New() *Store {
	return &Store{
		salesByID:      make(map[string]*domain.Sale),
		paymentsBySale: make(map[string][]domain.Payment),
	}
}

// NewSeeded returns a store preloaded with a couple of open café sales for
// dev/demo mode, used when no DATABASE_URL is configured.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	seed := []domain.Sale{
		{
			ID:        "sale-demo-t4",
			TableCode: "T4",
			Status:    domain.SaleStatusOpen,
			CreatedAt: now.Add(-25 * time.Minute),
			Items: []domain.SaleItem{
				{ID: "item-espresso", Name: "Espresso", UnitPriceCents: 350, QuantityTotal: 2, QuantityRemaining: 2, TaxRate: 0.10},
				{ID: "item-latte", Name: "Caffè Latte", UnitPriceCents: 550, QuantityTotal: 1, QuantityRemaining: 1, TaxRate: 0.10},
				{ID: "item-cheesecake", Name: "Cheesecake", UnitPriceCents: 700, QuantityTotal: 2, QuantityRemaining: 2, TaxRate: 0.10, DiscountRate: 0.05},
			},
		},
		{
			ID:        "sale-demo-t7",
			TableCode: "T7",
			Status:    domain.SaleStatusOpen,
			CreatedAt: now.Add(-5 * time.Minute),
			Items: []domain.SaleItem{
				{ID: "item-americano", Name: "Americano", UnitPriceCents: 400, QuantityTotal: 3, QuantityRemaining: 3},
				{ID: "item-croissant", Name: "Croissant", UnitPriceCents: 450, QuantityTotal: 1, QuantityRemaining: 1},
			},
		},
	}

	for _, sale := range seed {
		copied := sale
		copied.Items = append([]domain.SaleItem(nil), sale.Items...)
		s.salesByID[copied.ID] = &copied
	}
	return s
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrInvalidPayment
	}
	for i := range sale.Items {
		item := &sale.Items[i]
		if item.UnitPriceCents < 0 || item.QuantityTotal < 1 {
			return nil, store.ErrInvalidPayment
		}
		if item.ID == "" {
			item.ID = xid.New("item")
		}
		item.QuantityRemaining = item.QuantityTotal
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	sale.Status = domain.SaleStatusOpen
	sale.TotalPaidCents = 0
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrInvalidPayment
	}
	copied := cloneSale(&sale)
	s.salesByID[sale.ID] = copied
	result := cloneSale(copied)
	return result, nil
}

func (s *Store) GetSale(_ context.Context, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.salesByID[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListOpenSales(_ context.Context, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	open := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if sale.Status != domain.SaleStatusOpen {
			continue
		}
		open = append(open, *cloneSale(sale))
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return strings.Compare(open[i].ID, open[j].ID) < 0
		}
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})
	if len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (s *Store) RecordPayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	if payment.AmountCents < 1 || !payment.Method.Valid() {
		return nil, store.ErrInvalidPayment
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[payment.SaleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.Status != domain.SaleStatusOpen {
		return nil, store.ErrSaleClosed
	}

	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	payment.Items = append([]domain.PaymentLine(nil), payment.Items...)

	sale.TotalPaidCents += payment.AmountCents
	s.paymentsBySale[payment.SaleID] = append(s.paymentsBySale[payment.SaleID], payment)

	recorded := payment
	return &recorded, nil
}

func (s *Store) ListPayments(_ context.Context, saleID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.salesByID[saleID]; !ok {
		return nil, store.ErrNotFound
	}
	payments := append([]domain.Payment(nil), s.paymentsBySale[saleID]...)
	return payments, nil
}

func (s *Store) ApplySelectionPaid(_ context.Context, saleID string, lines []domain.PaymentLine) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.Status != domain.SaleStatusOpen {
		return nil, store.ErrSaleClosed
	}

	for _, line := range lines {
		for i := range sale.Items {
			item := &sale.Items[i]
			if item.ID != line.ItemID {
				continue
			}
			item.QuantityRemaining -= line.Quantity
			if item.QuantityRemaining < 0 {
				item.QuantityRemaining = 0
			}
		}
	}

	remaining := 0
	for _, item := range sale.Items {
		remaining += item.QuantityRemaining
	}
	if remaining == 0 {
		sale.Status = domain.SaleStatusPaid
		closedAt := time.Now().UTC()
		sale.ClosedAt = &closedAt
	}

	return cloneSale(sale), nil
}

func cloneSale(sale *domain.Sale) *domain.Sale {
	copied := *sale
	copied.Items = append([]domain.SaleItem(nil), sale.Items...)
	if sale.ClosedAt != nil {
		closedAt := *sale.ClosedAt
		copied.ClosedAt = &closedAt
	}
	return &copied
}
