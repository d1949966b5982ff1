// Package splits keeps a set of payment splits synchronized with the
// authoritative selected-items total while honoring amounts the cashier has
// pinned by hand.
//
// The Controller owns the split list explicitly: every mutating operation
// runs a one-shot redistribution before returning, so there is no reactive
// recomputation and no re-entrancy to guard against.
package splits

import (
	"errors"

	"github.com/google/uuid"

	"kopitiam/backend/internal/domain"
)

var ErrSplitNotFound = errors.New("split not found")

// ErrLastSplit is returned when removal would leave the controller with no
// unsubmitted splits to carry the total.
var ErrLastSplit = errors.New("cannot remove the last remaining split")

// ErrSplitSubmitted is returned when a mutation targets a split that was
// already submitted. Submitted splits are the frozen record of money that
// moved; editing or removing them would desynchronize the session from the
// recorded payments.
var ErrSplitSubmitted = errors.New("split already submitted")

// Controller maintains the splits for one payment screen session. It is not
// safe for concurrent use; the owning session serializes access.
type Controller struct {
	splits     []domain.PaymentSplit
	totalCents int64
}

// NewController starts with a single empty, unlocked split so the full total
// lands on it as soon as the total is known.
func NewController() *Controller {
	c := &Controller{}
	c.splits = append(c.splits, newSplit())
	return c
}

func newSplit() domain.PaymentSplit {
	return domain.PaymentSplit{ID: uuid.NewString()}
}

// Splits returns a copy of the current split list in display order.
func (c *Controller) Splits() []domain.PaymentSplit {
	out := make([]domain.PaymentSplit, len(c.splits))
	copy(out, c.splits)
	return out
}

// Total returns the authoritative total the splits are balanced against.
func (c *Controller) Total() int64 {
	return c.totalCents
}

// SetTotal records a new authoritative total and rebalances the auto splits.
func (c *Controller) SetTotal(totalCents int64) {
	if totalCents < 0 {
		totalCents = 0
	}
	c.totalCents = totalCents
	c.redistribute()
}

// UpdateAmount sets the amount on one split and marks it manually edited.
// From then on redistribution never overwrites it; only another UpdateAmount
// (or an unlock) changes its amount.
func (c *Controller) UpdateAmount(id string, amountCents int64) error {
	split, err := c.editable(id)
	if err != nil {
		return err
	}
	if amountCents < 0 {
		amountCents = 0
	}
	split.AmountCents = amountCents
	split.ManuallyEdited = true
	c.redistribute()
	return nil
}

// SetMethod assigns the tender type of one split.
func (c *Controller) SetMethod(id string, method domain.PaymentMethod) error {
	split, err := c.editable(id)
	if err != nil {
		return err
	}
	split.Method = method
	return nil
}

// SetReference records the method-specific reference (e.g. the destination
// account of a card transfer).
func (c *Controller) SetReference(id string, reference string) error {
	split, err := c.editable(id)
	if err != nil {
		return err
	}
	split.Reference = reference
	return nil
}

// ToggleLock flips the user-facing pin. Locking pins the current amount by
// marking the split manually edited; unlocking clears both flags and returns
// the split to the auto pool.
func (c *Controller) ToggleLock(id string) error {
	split, err := c.editable(id)
	if err != nil {
		return err
	}
	split.Locked = !split.Locked
	split.ManuallyEdited = split.Locked
	c.redistribute()
	return nil
}

// AddSplit appends a new empty auto split and rebalances.
func (c *Controller) AddSplit() domain.PaymentSplit {
	split := newSplit()
	c.splits = append(c.splits, split)
	c.redistribute()
	return *c.find(split.ID)
}

// RemoveSplit deletes one unsubmitted split. Submitted splits are refused:
// they stay as the permanent record of what was already paid, and dropping
// one would re-inflate the outstanding total with money already collected.
func (c *Controller) RemoveSplit(id string) error {
	idx := -1
	active := 0
	for i := range c.splits {
		if !c.splits[i].Submitted {
			active++
		}
		if c.splits[i].ID == id {
			idx = i
		}
	}
	if idx < 0 {
		return ErrSplitNotFound
	}
	if c.splits[idx].Submitted {
		return ErrSplitSubmitted
	}
	if active <= 1 {
		return ErrLastSplit
	}
	c.splits = append(c.splits[:idx], c.splits[idx+1:]...)
	c.redistribute()
	return nil
}

// MarkSubmitted permanently excludes a split from redistribution and
// validation after the backend accepted it.
func (c *Controller) MarkSubmitted(id string) error {
	split := c.find(id)
	if split == nil {
		return ErrSplitNotFound
	}
	split.Submitted = true
	split.SubmitError = ""
	return nil
}

// MarkFailed records a submission failure on the split, leaving it active
// for retry.
func (c *Controller) MarkFailed(id string, reason string) error {
	split := c.find(id)
	if split == nil {
		return ErrSplitNotFound
	}
	split.SubmitError = reason
	return nil
}

// redistribute divides the total that manual splits do not claim across the
// auto splits: integer floor division, with the remainder handed out one
// cent at a time to the leading auto splits. The auto amounts therefore sum
// to the unclaimed total exactly.
//
// If the manual amounts already exceed the total, the auto splits drop to
// zero and the imbalance is left for the validator to surface.
func (c *Controller) redistribute() {
	manualSum := int64(0)
	auto := make([]*domain.PaymentSplit, 0, len(c.splits))
	for i := range c.splits {
		split := &c.splits[i]
		if split.Submitted {
			continue
		}
		if split.ManuallyEdited {
			manualSum += split.AmountCents
			continue
		}
		auto = append(auto, split)
	}
	if len(auto) == 0 {
		return
	}

	remaining := c.totalCents - manualSum
	if remaining < 0 {
		remaining = 0
	}

	base := remaining / int64(len(auto))
	rem := remaining % int64(len(auto))
	for i, split := range auto {
		split.AmountCents = base
		if int64(i) < rem {
			split.AmountCents++
		}
	}
}

// editable resolves a split id for a mutating operation, rejecting splits
// that were already submitted.
func (c *Controller) editable(id string) (*domain.PaymentSplit, error) {
	split := c.find(id)
	if split == nil {
		return nil, ErrSplitNotFound
	}
	if split.Submitted {
		return nil, ErrSplitSubmitted
	}
	return split, nil
}

func (c *Controller) find(id string) *domain.PaymentSplit {
	for i := range c.splits {
		if c.splits[i].ID == id {
			return &c.splits[i]
		}
	}
	return nil
}
