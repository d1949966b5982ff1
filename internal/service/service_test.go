package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"kopitiam/backend/internal/cache"
	"kopitiam/backend/internal/domain"
	"kopitiam/backend/internal/splits"
	"kopitiam/backend/internal/store"
	"kopitiam/backend/internal/store/memory"
)

// flakyRepo fails RecordPayment for one payment method while the switch is
// on, to exercise per-split submission outcomes.
type flakyRepo struct {
	store.Repository
	failMethod domain.PaymentMethod
	failing    bool
}

func (f *flakyRepo) RecordPayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if f.failing && payment.Method == f.failMethod {
		return nil, errors.New("terminal offline")
	}
	return f.Repository.RecordPayment(ctx, payment)
}

func newTestService(t *testing.T, repo store.Repository) (*Service, string) {
	t.Helper()
	svc := New(repo, cache.NoopSaleCache{}, time.Second, time.Hour)

	sale, err := svc.CreateSale(context.Background(), domain.Sale{
		TableCode: "T1",
		Items: []domain.SaleItem{
			{Name: "Flat White", UnitPriceCents: 600, QuantityTotal: 1},
			{Name: "Brownie", UnitPriceCents: 400, QuantityTotal: 1},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	return svc, sale.ID
}

func TestStartSessionSelectsAllRemaining(t *testing.T) {
	svc, saleID := newTestService(t, memory.New())

	state, err := svc.StartSession(context.Background(), saleID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	if len(state.Selected) != 2 {
		t.Fatalf("expected both items selected, got %+v", state.Selected)
	}
	if state.Summary.SelectedItemsTotalCents != 1000 {
		t.Fatalf("expected selected total 1000, got %d", state.Summary.SelectedItemsTotalCents)
	}
	if len(state.Splits) != 1 || state.Splits[0].AmountCents != 1000 {
		t.Fatalf("expected one split covering 1000, got %+v", state.Splits)
	}
	// No method chosen yet, so the set cannot be submitted.
	if !state.Validation.IsBlocking {
		t.Fatalf("expected blocking validation before a method is chosen")
	}
}

func TestStartSessionRejectsClosedSale(t *testing.T) {
	repo := memory.New()
	svc, saleID := newTestService(t, repo)

	if _, err := repo.ApplySelectionPaid(context.Background(), saleID, []domain.PaymentLine{
		{ItemID: mustSale(t, svc, saleID).Items[0].ID, Quantity: 1},
		{ItemID: mustSale(t, svc, saleID).Items[1].ID, Quantity: 1},
	}); err != nil {
		t.Fatalf("close sale: %v", err)
	}

	if _, err := svc.StartSession(context.Background(), saleID); !errors.Is(err, store.ErrSaleClosed) {
		t.Fatalf("expected ErrSaleClosed, got %v", err)
	}
}

func TestUpdateSelectionRebalancesSplits(t *testing.T) {
	svc, saleID := newTestService(t, memory.New())

	state, err := svc.StartSession(context.Background(), saleID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	sale := mustSale(t, svc, saleID)
	state, err = svc.UpdateSelection(context.Background(), state.SessionID, []domain.SelectedItem{
		{ItemID: sale.Items[0].ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("update selection: %v", err)
	}

	if state.Summary.SelectedItemsTotalCents != 600 {
		t.Fatalf("expected selected total 600, got %d", state.Summary.SelectedItemsTotalCents)
	}
	if state.Splits[0].AmountCents != 600 {
		t.Fatalf("expected split rebalanced to 600, got %d", state.Splits[0].AmountCents)
	}
}

func TestSubmitBlockedWithoutMethod(t *testing.T) {
	svc, saleID := newTestService(t, memory.New())

	state, err := svc.StartSession(context.Background(), saleID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	resp, err := svc.Submit(context.Background(), state.SessionID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !resp.Blocked {
		t.Fatalf("expected blocked submit, got %+v", resp)
	}

	payments, err := svc.ListPayments(context.Background(), saleID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("blocked submit must record nothing, got %d payments", len(payments))
	}
}

func TestSubmitPaysSaleInFull(t *testing.T) {
	svc, saleID := newTestService(t, memory.New())

	state, err := svc.StartSession(context.Background(), saleID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := svc.SetSplitMethod(context.Background(), state.SessionID, state.Splits[0].ID, domain.MethodCash, ""); err != nil {
		t.Fatalf("set method: %v", err)
	}

	resp, err := svc.Submit(context.Background(), state.SessionID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Blocked {
		t.Fatalf("unexpected block: %q", resp.BlockingReason)
	}
	if !resp.SaleFullyPaid {
		t.Fatalf("expected sale fully paid, got %+v", resp)
	}
	if len(resp.Statuses) != 1 || resp.Statuses[0].Status != domain.SubmitStatusPaid {
		t.Fatalf("unexpected statuses %+v", resp.Statuses)
	}

	sale := mustSale(t, svc, saleID)
	if sale.Status != domain.SaleStatusPaid {
		t.Fatalf("expected sale status paid, got %q", sale.Status)
	}
	if sale.TotalPaidCents != 1000 {
		t.Fatalf("expected total paid 1000, got %d", sale.TotalPaidCents)
	}
}

func TestSubmitPartialFailureIsRetryable(t *testing.T) {
	repo := &flakyRepo{Repository: memory.New(), failMethod: domain.MethodPOS, failing: true}
	svc, saleID := newTestService(t, repo)

	state, err := svc.StartSession(context.Background(), saleID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	state, err = svc.AddSplit(context.Background(), state.SessionID)
	if err != nil {
		t.Fatalf("add split: %v", err)
	}
	if _, err := svc.SetSplitMethod(context.Background(), state.SessionID, state.Splits[0].ID, domain.MethodCash, ""); err != nil {
		t.Fatalf("set method: %v", err)
	}
	if _, err := svc.SetSplitMethod(context.Background(), state.SessionID, state.Splits[1].ID, domain.MethodPOS, ""); err != nil {
		t.Fatalf("set method: %v", err)
	}

	resp, err := svc.Submit(context.Background(), state.SessionID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.SaleFullyPaid {
		t.Fatalf("sale must not be fully paid after a failed split")
	}

	paid, failed := 0, 0
	for _, st := range resp.Statuses {
		switch st.Status {
		case domain.SubmitStatusPaid:
			paid++
		case domain.SubmitStatusFailed:
			failed++
			if st.Reason == "" {
				t.Fatalf("failed status must carry a reason")
			}
		}
	}
	if paid != 1 || failed != 1 {
		t.Fatalf("expected one paid and one failed split, got %+v", resp.Statuses)
	}

	// The cash leg landed; the failed split stays open and retryable.
	sale := mustSale(t, svc, saleID)
	if sale.Status != domain.SaleStatusOpen {
		t.Fatalf("sale must stay open, got %q", sale.Status)
	}
	if sale.TotalPaidCents != 500 {
		t.Fatalf("expected partial total paid 500, got %d", sale.TotalPaidCents)
	}

	repo.failing = false
	resp, err = svc.Submit(context.Background(), state.SessionID)
	if err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if !resp.SaleFullyPaid {
		t.Fatalf("expected sale fully paid after retry, got %+v", resp)
	}
	if len(resp.Statuses) != 1 {
		t.Fatalf("retry must only resubmit the failed split, got %+v", resp.Statuses)
	}

	payments, err := svc.ListPayments(context.Background(), saleID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected exactly 2 recorded payments, got %d", len(payments))
	}
}

func TestSubmittedSplitCannotBeRemovedOrEdited(t *testing.T) {
	repo := &flakyRepo{Repository: memory.New(), failMethod: domain.MethodPOS, failing: true}
	svc, saleID := newTestService(t, repo)

	state, err := svc.StartSession(context.Background(), saleID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	state, err = svc.AddSplit(context.Background(), state.SessionID)
	if err != nil {
		t.Fatalf("add split: %v", err)
	}
	if _, err := svc.SetSplitMethod(context.Background(), state.SessionID, state.Splits[0].ID, domain.MethodCash, ""); err != nil {
		t.Fatalf("set method: %v", err)
	}
	if _, err := svc.SetSplitMethod(context.Background(), state.SessionID, state.Splits[1].ID, domain.MethodPOS, ""); err != nil {
		t.Fatalf("set method: %v", err)
	}

	resp, err := svc.Submit(context.Background(), state.SessionID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var paidSplitID string
	for _, st := range resp.Statuses {
		if st.Status == domain.SubmitStatusPaid {
			paidSplitID = st.SplitID
		}
	}
	if paidSplitID == "" {
		t.Fatalf("expected one paid split, got %+v", resp.Statuses)
	}

	// The recorded payment must stay frozen in the session; dropping or
	// editing it would re-inflate the outstanding total with money already
	// collected.
	if _, err := svc.RemoveSplit(context.Background(), state.SessionID, paidSplitID); !errors.Is(err, splits.ErrSplitSubmitted) {
		t.Fatalf("RemoveSplit: expected ErrSplitSubmitted, got %v", err)
	}
	if _, err := svc.UpdateSplitAmount(context.Background(), state.SessionID, paidSplitID, 100); !errors.Is(err, splits.ErrSplitSubmitted) {
		t.Fatalf("UpdateSplitAmount: expected ErrSplitSubmitted, got %v", err)
	}

	repo.failing = false
	resp, err = svc.Submit(context.Background(), state.SessionID)
	if err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if !resp.SaleFullyPaid {
		t.Fatalf("expected sale fully paid after retry, got %+v", resp)
	}

	sale := mustSale(t, svc, saleID)
	if sale.TotalPaidCents != 1000 {
		t.Fatalf("expected total paid exactly 1000, got %d", sale.TotalPaidCents)
	}
}

func TestSetSplitMethodRejectsUnknownMethod(t *testing.T) {
	svc, saleID := newTestService(t, memory.New())

	state, err := svc.StartSession(context.Background(), saleID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	_, err = svc.SetSplitMethod(context.Background(), state.SessionID, state.Splits[0].ID, "CHEQUE", "")
	if !errors.Is(err, store.ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment, got %v", err)
	}
}

func TestCloseAndExpireSessions(t *testing.T) {
	svc, saleID := newTestService(t, memory.New())

	state, err := svc.StartSession(context.Background(), saleID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := svc.CloseSession(context.Background(), state.SessionID); err != nil {
		t.Fatalf("close session: %v", err)
	}
	if _, err := svc.GetSession(context.Background(), state.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after close, got %v", err)
	}
	if err := svc.CloseSession(context.Background(), "psn-missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for unknown id, got %v", err)
	}
}

func TestNormalizeSelectionMergesDuplicates(t *testing.T) {
	got := normalizeSelection([]domain.SelectedItem{
		{ItemID: "a", Quantity: 1},
		{ItemID: "b", Quantity: 2},
		{ItemID: "a", Quantity: 3},
		{ItemID: "", Quantity: 5},
		{ItemID: "c", Quantity: 0},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 normalized entries, got %+v", got)
	}
	if got[0].ItemID != "a" || got[0].Quantity != 4 {
		t.Fatalf("expected merged a=4 first, got %+v", got[0])
	}
	if got[1].ItemID != "b" || got[1].Quantity != 2 {
		t.Fatalf("expected b=2 second, got %+v", got[1])
	}
}

func mustSale(t *testing.T, svc *Service, saleID string) *domain.Sale {
	t.Helper()
	sale, err := svc.GetSale(context.Background(), saleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	return sale
}
