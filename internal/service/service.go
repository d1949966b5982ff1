package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kopitiam/backend/internal/cache"
	"kopitiam/backend/internal/domain"
	"kopitiam/backend/internal/metrics"
	"kopitiam/backend/internal/splits"
	"kopitiam/backend/internal/store"
	"kopitiam/backend/internal/summary"
	"kopitiam/backend/internal/xid"
)

var ErrSessionNotFound = errors.New("payment session not found")

// Service owns the payment screen sessions. Each session is the explicit
// state container for one sale's payment flow: the current item selection
// and the split controller balanced against it. Session state lives only in
// memory and is discarded on close or expiry.
type Service struct {
	repo       store.Repository
	sales      cache.SaleCache
	saleTTL    time.Duration
	sessionTTL time.Duration
	validator  splits.Validator

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu         sync.Mutex
	id         string
	saleID     string
	selected   []domain.SelectedItem
	controller *splits.Controller
	touchedAt  time.Time
}

func New(repo store.Repository, sales cache.SaleCache, saleTTL time.Duration, sessionTTL time.Duration) *Service {
	if saleTTL <= 0 {
		saleTTL = 10 * time.Second
	}
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	return &Service{
		repo:       repo,
		sales:      sales,
		saleTTL:    saleTTL,
		sessionTTL: sessionTTL,
		validator:  splits.Validator{Rules: []splits.MethodRule{splits.RequireTransferReference}},
		sessions:   make(map[string]*session),
	}
}

func (s *Service) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return nil, err
	}
	slog.Info("sale created", "sale_id", created.ID, "table", created.TableCode, "items", len(created.Items))
	return created, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	if saleID == "" {
		return nil, store.ErrNotFound
	}

	if cached, ok, err := s.sales.Get(ctx, saleID); err == nil && ok {
		return cached, nil
	} else if err != nil {
		slog.Warn("sale cache read failed", "sale_id", saleID, "error", err)
	}

	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if err := s.sales.Set(ctx, saleID, sale, s.saleTTL); err != nil {
		slog.Warn("sale cache write failed", "sale_id", saleID, "error", err)
	}
	return sale, nil
}

func (s *Service) ListOpenSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	return s.repo.ListOpenSales(ctx, limit)
}

func (s *Service) ListPayments(ctx context.Context, saleID string) ([]domain.Payment, error) {
	return s.repo.ListPayments(ctx, saleID)
}

// StartSession opens a payment session for an open sale. The initial
// selection covers every unpaid unit, and the single starting split absorbs
// the full selected total.
func (s *Service) StartSession(ctx context.Context, saleID string) (domain.SessionState, error) {
	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return domain.SessionState{}, err
	}
	if sale.Status != domain.SaleStatusOpen {
		return domain.SessionState{}, store.ErrSaleClosed
	}

	sess := &session{
		id:         xid.New("psn"),
		saleID:     sale.ID,
		selected:   summary.SelectAllRemaining(sale.Items),
		controller: splits.NewController(),
		touchedAt:  time.Now(),
	}

	s.mu.Lock()
	s.purgeExpiredLocked(time.Now())
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	metrics.SessionsStarted.Inc()
	slog.Info("payment session started", "session_id", sess.id, "sale_id", sale.ID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.refreshLocked(sess, sale), nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (domain.SessionState, error) {
	return s.withSession(ctx, sessionID, func(*session, *domain.Sale) error { return nil })
}

func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	slog.Info("payment session closed", "session_id", sessionID)
	return nil
}

// UpdateSelection replaces the items selected for payment. Quantities are
// clamped to what remains unpaid when the summary is computed, never here.
func (s *Service) UpdateSelection(ctx context.Context, sessionID string, selected []domain.SelectedItem) (domain.SessionState, error) {
	return s.withSession(ctx, sessionID, func(sess *session, _ *domain.Sale) error {
		sess.selected = normalizeSelection(selected)
		return nil
	})
}

func (s *Service) AddSplit(ctx context.Context, sessionID string) (domain.SessionState, error) {
	return s.withSession(ctx, sessionID, func(sess *session, _ *domain.Sale) error {
		sess.controller.AddSplit()
		return nil
	})
}

func (s *Service) RemoveSplit(ctx context.Context, sessionID string, splitID string) (domain.SessionState, error) {
	return s.withSession(ctx, sessionID, func(sess *session, _ *domain.Sale) error {
		return sess.controller.RemoveSplit(splitID)
	})
}

func (s *Service) UpdateSplitAmount(ctx context.Context, sessionID string, splitID string, amountCents int64) (domain.SessionState, error) {
	return s.withSession(ctx, sessionID, func(sess *session, _ *domain.Sale) error {
		return sess.controller.UpdateAmount(splitID, amountCents)
	})
}

func (s *Service) SetSplitMethod(ctx context.Context, sessionID string, splitID string, method domain.PaymentMethod, reference string) (domain.SessionState, error) {
	return s.withSession(ctx, sessionID, func(sess *session, _ *domain.Sale) error {
		if !method.Valid() {
			return fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidPayment, method)
		}
		if err := sess.controller.SetMethod(splitID, method); err != nil {
			return err
		}
		return sess.controller.SetReference(splitID, reference)
	})
}

func (s *Service) SetSplitReference(ctx context.Context, sessionID string, splitID string, reference string) (domain.SessionState, error) {
	return s.withSession(ctx, sessionID, func(sess *session, _ *domain.Sale) error {
		return sess.controller.SetReference(splitID, reference)
	})
}

func (s *Service) ToggleSplitLock(ctx context.Context, sessionID string, splitID string) (domain.SessionState, error) {
	return s.withSession(ctx, sessionID, func(sess *session, _ *domain.Sale) error {
		return sess.controller.ToggleLock(splitID)
	})
}

// Submit records one payment per submittable split. Each split's fate is
// independent: a failure marks only that split and leaves it retryable,
// while splits that succeeded stay submitted. The selected quantities are
// applied to the sale once the whole selection is covered.
func (s *Service) Submit(ctx context.Context, sessionID string) (domain.SubmitResponse, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return domain.SubmitResponse{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sale, err := s.GetSale(ctx, sess.saleID)
	if err != nil {
		return domain.SubmitResponse{}, err
	}

	state := s.refreshLocked(sess, sale)
	resp := domain.SubmitResponse{SessionID: sess.id, SaleID: sess.saleID}

	if state.Validation.IsBlocking {
		resp.Blocked = true
		resp.BlockingReason = state.Validation.BlockingReason
		resp.State = &state
		return resp, nil
	}

	submittable := make(map[string]bool, len(state.Validation.SubmittableSplitIDs))
	for _, id := range state.Validation.SubmittableSplitIDs {
		submittable[id] = true
	}

	lines := selectionLines(sale.Items, sess.selected)
	allOK := true
	for _, split := range sess.controller.Splits() {
		if split.Submitted || !submittable[split.ID] {
			continue
		}

		payment := domain.Payment{
			ID:          xid.New("pay"),
			SaleID:      sess.saleID,
			SessionID:   sess.id,
			SplitID:     split.ID,
			Method:      split.Method,
			AmountCents: split.AmountCents,
			Reference:   split.Reference,
			Items:       lines,
		}

		recorded, err := s.repo.RecordPayment(ctx, payment)
		if err != nil {
			allOK = false
			_ = sess.controller.MarkFailed(split.ID, err.Error())
			metrics.PaymentsSubmitted.WithLabelValues(string(split.Method), domain.SubmitStatusFailed).Inc()
			slog.Warn("payment submission failed", "session_id", sess.id, "split_id", split.ID, "error", err)
			resp.Statuses = append(resp.Statuses, domain.SubmitSplitStatus{
				SplitID: split.ID,
				Status:  domain.SubmitStatusFailed,
				Reason:  err.Error(),
			})
			continue
		}

		_ = sess.controller.MarkSubmitted(split.ID)
		metrics.PaymentsSubmitted.WithLabelValues(string(split.Method), domain.SubmitStatusPaid).Inc()
		resp.Statuses = append(resp.Statuses, domain.SubmitSplitStatus{
			SplitID:   split.ID,
			Status:    domain.SubmitStatusPaid,
			PaymentID: recorded.ID,
		})
	}

	if err := s.sales.Invalidate(ctx, sess.saleID); err != nil {
		slog.Warn("sale cache invalidation failed", "sale_id", sess.saleID, "error", err)
	}

	if allOK {
		updated, err := s.repo.ApplySelectionPaid(ctx, sess.saleID, lines)
		if err != nil {
			return domain.SubmitResponse{}, err
		}
		if err := s.sales.Invalidate(ctx, sess.saleID); err != nil {
			slog.Warn("sale cache invalidation failed", "sale_id", sess.saleID, "error", err)
		}
		sess.selected = nil
		sale = updated
		resp.SaleFullyPaid = updated.Status == domain.SaleStatusPaid
		slog.Info("selection paid", "session_id", sess.id, "sale_id", sess.saleID, "fully_paid", resp.SaleFullyPaid)
	} else {
		refreshed, err := s.GetSale(ctx, sess.saleID)
		if err == nil {
			sale = refreshed
		}
	}

	final := s.refreshLocked(sess, sale)
	resp.State = &final
	return resp, nil
}

func (s *Service) lookup(sessionID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touchedAt = time.Now()
	return sess, nil
}

func (s *Service) withSession(ctx context.Context, sessionID string, mutate func(*session, *domain.Sale) error) (domain.SessionState, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return domain.SessionState{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sale, err := s.GetSale(ctx, sess.saleID)
	if err != nil {
		return domain.SessionState{}, err
	}
	if err := mutate(sess, sale); err != nil {
		return domain.SessionState{}, err
	}
	return s.refreshLocked(sess, sale), nil
}

// refreshLocked recomputes the derived state: summary from the live sale,
// the outstanding total for the controller (selected total minus what this
// session already submitted), and the validation verdict. Caller holds the
// session lock.
func (s *Service) refreshLocked(sess *session, sale *domain.Sale) domain.SessionState {
	sum := summary.Compute(sale.Items, sess.selected, sale.TotalPaidCents)
	breakdown := summary.ComputeBreakdown(sale.Items, sess.selected)

	current := sess.controller.Splits()
	submittedSum := int64(0)
	for _, split := range current {
		if split.Submitted {
			submittedSum += split.AmountCents
		}
	}
	outstanding := sum.SelectedItemsTotalCents - submittedSum
	if outstanding < 0 {
		outstanding = 0
	}
	if outstanding != sess.controller.Total() {
		sess.controller.SetTotal(outstanding)
		metrics.SplitsRebalanced.Inc()
	}

	splitList := sess.controller.Splits()
	return domain.SessionState{
		SessionID:  sess.id,
		SaleID:     sess.saleID,
		Summary:    sum,
		Breakdown:  breakdown,
		Selected:   append([]domain.SelectedItem(nil), sess.selected...),
		Splits:     splitList,
		Validation: s.validator.Validate(splitList, outstanding),
	}
}

// purgeExpiredLocked drops sessions idle past the TTL. Caller holds s.mu.
func (s *Service) purgeExpiredLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.touchedAt) > s.sessionTTL {
			delete(s.sessions, id)
		}
	}
}

func normalizeSelection(selected []domain.SelectedItem) []domain.SelectedItem {
	agg := make(map[string]int, len(selected))
	order := make([]string, 0, len(selected))
	for _, sel := range selected {
		if sel.ItemID == "" || sel.Quantity < 1 {
			continue
		}
		if _, seen := agg[sel.ItemID]; !seen {
			order = append(order, sel.ItemID)
		}
		agg[sel.ItemID] += sel.Quantity
	}

	normalized := make([]domain.SelectedItem, 0, len(order))
	for _, itemID := range order {
		normalized = append(normalized, domain.SelectedItem{ItemID: itemID, Quantity: agg[itemID]})
	}
	return normalized
}

// selectionLines converts the selection into clamped payment lines, the
// quantities that will actually be marked paid.
func selectionLines(items []domain.SaleItem, selected []domain.SelectedItem) []domain.PaymentLine {
	byID := make(map[string]domain.SaleItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	lines := make([]domain.PaymentLine, 0, len(selected))
	for _, sel := range selected {
		item, ok := byID[sel.ItemID]
		if !ok {
			continue
		}
		qty := sel.Quantity
		if qty > item.QuantityRemaining {
			qty = item.QuantityRemaining
		}
		if qty < 1 {
			continue
		}
		lines = append(lines, domain.PaymentLine{ItemID: sel.ItemID, Quantity: qty})
	}
	return lines
}
