package memory

import (
	"context"
	"errors"
	"testing"

	"kopitiam/backend/internal/domain"
	"kopitiam/backend/internal/store"
)

func openSale(t *testing.T, s *Store) *domain.Sale {
	t.Helper()
	sale, err := s.CreateSale(context.Background(), domain.Sale{
		TableCode: "T9",
		Items: []domain.SaleItem{
			{Name: "Espresso", UnitPriceCents: 350, QuantityTotal: 2},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	return sale
}

func TestCreateSaleAssignsIDsAndRemaining(t *testing.T) {
	sale := openSale(t, New())
	if sale.ID == "" || sale.Items[0].ID == "" {
		t.Fatalf("expected generated ids, got %+v", sale)
	}
	if sale.Items[0].QuantityRemaining != 2 {
		t.Fatalf("remaining should start at total, got %d", sale.Items[0].QuantityRemaining)
	}
	if sale.Status != domain.SaleStatusOpen {
		t.Fatalf("expected open sale, got %q", sale.Status)
	}
}

func TestCreateSaleRejectsEmptyOrInvalidItems(t *testing.T) {
	s := New()
	if _, err := s.CreateSale(context.Background(), domain.Sale{TableCode: "T1"}); !errors.Is(err, store.ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment for no items, got %v", err)
	}
	if _, err := s.CreateSale(context.Background(), domain.Sale{
		Items: []domain.SaleItem{{Name: "Bad", UnitPriceCents: -1, QuantityTotal: 1}},
	}); !errors.Is(err, store.ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment for negative price, got %v", err)
	}
}

func TestRecordPaymentBumpsTotalPaid(t *testing.T) {
	s := New()
	sale := openSale(t, s)

	recorded, err := s.RecordPayment(context.Background(), domain.Payment{
		SaleID:      sale.ID,
		SplitID:     "split-1",
		Method:      domain.MethodCash,
		AmountCents: 350,
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if recorded.ID == "" {
		t.Fatalf("expected generated payment id")
	}

	fetched, err := s.GetSale(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if fetched.TotalPaidCents != 350 {
		t.Fatalf("expected total paid 350, got %d", fetched.TotalPaidCents)
	}
}

func TestApplySelectionPaidClosesSale(t *testing.T) {
	s := New()
	sale := openSale(t, s)

	partial, err := s.ApplySelectionPaid(context.Background(), sale.ID, []domain.PaymentLine{
		{ItemID: sale.Items[0].ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("apply partial: %v", err)
	}
	if partial.Status != domain.SaleStatusOpen || partial.Items[0].QuantityRemaining != 1 {
		t.Fatalf("expected one unit left on an open sale, got %+v", partial)
	}

	closed, err := s.ApplySelectionPaid(context.Background(), sale.ID, []domain.PaymentLine{
		{ItemID: sale.Items[0].ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("apply final: %v", err)
	}
	if closed.Status != domain.SaleStatusPaid || closed.ClosedAt == nil {
		t.Fatalf("expected closed sale, got %+v", closed)
	}

	if _, err := s.RecordPayment(context.Background(), domain.Payment{
		SaleID:      sale.ID,
		Method:      domain.MethodCash,
		AmountCents: 100,
	}); !errors.Is(err, store.ErrSaleClosed) {
		t.Fatalf("expected ErrSaleClosed on closed sale, got %v", err)
	}
}

func TestGetSaleReturnsIsolatedCopies(t *testing.T) {
	s := New()
	sale := openSale(t, s)

	first, _ := s.GetSale(context.Background(), sale.ID)
	first.Items[0].QuantityRemaining = 0

	second, _ := s.GetSale(context.Background(), sale.ID)
	if second.Items[0].QuantityRemaining != 2 {
		t.Fatalf("store state leaked through returned sale")
	}
}

func TestListOpenSalesOrdersByCreation(t *testing.T) {
	s := NewSeeded()
	sales, err := s.ListOpenSales(context.Background(), 10)
	if err != nil {
		t.Fatalf("list open sales: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 seeded sales, got %d", len(sales))
	}
	if !sales[0].CreatedAt.Before(sales[1].CreatedAt) {
		t.Fatalf("expected oldest sale first")
	}
}
