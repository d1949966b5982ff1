package splits

import "testing"

func activeSum(c *Controller) int64 {
	total := int64(0)
	for _, split := range c.Splits() {
		if !split.Submitted {
			total += split.AmountCents
		}
	}
	return total
}

func TestRemainderGoesToLeadingSplits(t *testing.T) {
	c := NewController()
	c.AddSplit()
	c.AddSplit()
	c.SetTotal(100)

	splits := c.Splits()
	if len(splits) != 3 {
		t.Fatalf("expected 3 splits, got %d", len(splits))
	}
	want := []int64{34, 33, 33}
	for i, split := range splits {
		if split.AmountCents != want[i] {
			t.Fatalf("split %d: expected %d, got %d", i, want[i], split.AmountCents)
		}
	}
	if activeSum(c) != 100 {
		t.Fatalf("expected amounts to sum to 100, got %d", activeSum(c))
	}
}

func TestSumConservationAcrossMutations(t *testing.T) {
	c := NewController()
	c.SetTotal(9999)

	c.AddSplit()
	if activeSum(c) != 9999 {
		t.Fatalf("after add: sum %d, want 9999", activeSum(c))
	}

	c.AddSplit()
	second := c.Splits()[1]
	if err := c.RemoveSplit(second.ID); err != nil {
		t.Fatalf("remove split: %v", err)
	}
	if activeSum(c) != 9999 {
		t.Fatalf("after remove: sum %d, want 9999", activeSum(c))
	}

	c.SetTotal(1234)
	if activeSum(c) != 1234 {
		t.Fatalf("after total change: sum %d, want 1234", activeSum(c))
	}
}

func TestManualEditSurvivesRedistribution(t *testing.T) {
	c := NewController()
	c.AddSplit()
	c.SetTotal(1000)

	first := c.Splits()[0]
	if err := c.UpdateAmount(first.ID, 300); err != nil {
		t.Fatalf("update amount: %v", err)
	}

	c.SetTotal(2000)
	c.AddSplit()
	c.SetTotal(500)

	for _, split := range c.Splits() {
		if split.ID == first.ID {
			if split.AmountCents != 300 {
				t.Fatalf("manually edited split changed to %d", split.AmountCents)
			}
			if !split.ManuallyEdited {
				t.Fatalf("expected split to stay manually edited")
			}
			return
		}
	}
	t.Fatalf("edited split disappeared")
}

func TestManualEditRebalancesAutoSplits(t *testing.T) {
	c := NewController()
	c.AddSplit()
	c.SetTotal(1000)

	first := c.Splits()[0]
	if err := c.UpdateAmount(first.ID, 300); err != nil {
		t.Fatalf("update amount: %v", err)
	}

	splits := c.Splits()
	if splits[1].AmountCents != 700 {
		t.Fatalf("expected auto split to absorb 700, got %d", splits[1].AmountCents)
	}
	if activeSum(c) != 1000 {
		t.Fatalf("expected sum 1000, got %d", activeSum(c))
	}
}

func TestManualOverageClampsAutoSplitsToZero(t *testing.T) {
	c := NewController()
	c.AddSplit()
	c.SetTotal(500)

	first := c.Splits()[0]
	if err := c.UpdateAmount(first.ID, 900); err != nil {
		t.Fatalf("update amount: %v", err)
	}

	splits := c.Splits()
	if splits[1].AmountCents != 0 {
		t.Fatalf("expected auto split clamped to 0, got %d", splits[1].AmountCents)
	}
}

func TestAllManualSplitsAreLeftAlone(t *testing.T) {
	c := NewController()
	c.SetTotal(1000)

	only := c.Splits()[0]
	if err := c.UpdateAmount(only.ID, 250); err != nil {
		t.Fatalf("update amount: %v", err)
	}

	// No auto splits remain; the imbalance is the validator's problem.
	c.SetTotal(800)
	if got := c.Splits()[0].AmountCents; got != 250 {
		t.Fatalf("expected manual amount 250 untouched, got %d", got)
	}
}

func TestToggleLockPinsAndReleases(t *testing.T) {
	c := NewController()
	c.AddSplit()
	c.SetTotal(100)

	first := c.Splits()[0]
	if err := c.ToggleLock(first.ID); err != nil {
		t.Fatalf("lock: %v", err)
	}

	c.SetTotal(900)
	splits := c.Splits()
	if splits[0].AmountCents != 50 {
		t.Fatalf("locked split should hold 50, got %d", splits[0].AmountCents)
	}
	if splits[1].AmountCents != 850 {
		t.Fatalf("auto split should absorb 850, got %d", splits[1].AmountCents)
	}

	if err := c.ToggleLock(first.ID); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	splits = c.Splits()
	if splits[0].ManuallyEdited || splits[0].Locked {
		t.Fatalf("unlock should clear both flags: %+v", splits[0])
	}
	if splits[0].AmountCents+splits[1].AmountCents != 900 {
		t.Fatalf("expected rebalanced sum 900, got %d", splits[0].AmountCents+splits[1].AmountCents)
	}
}

func TestSubmittedSplitsAreExcludedFromRedistribution(t *testing.T) {
	c := NewController()
	c.AddSplit()
	c.SetTotal(1000)

	first := c.Splits()[0]
	if err := c.MarkSubmitted(first.ID); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	c.SetTotal(400)
	splits := c.Splits()
	if splits[0].AmountCents != 500 {
		t.Fatalf("submitted split amount should be frozen at 500, got %d", splits[0].AmountCents)
	}
	if splits[1].AmountCents != 400 {
		t.Fatalf("remaining split should carry the new total 400, got %d", splits[1].AmountCents)
	}
}

func TestSubmittedSplitIsFrozen(t *testing.T) {
	c := NewController()
	c.AddSplit()
	c.SetTotal(1000)

	first := c.Splits()[0]
	if err := c.MarkSubmitted(first.ID); err != nil {
		t.Fatalf("mark submitted: %v", err)
	}

	if err := c.UpdateAmount(first.ID, 100); err != ErrSplitSubmitted {
		t.Fatalf("UpdateAmount: expected ErrSplitSubmitted, got %v", err)
	}
	if err := c.SetMethod(first.ID, "POS"); err != ErrSplitSubmitted {
		t.Fatalf("SetMethod: expected ErrSplitSubmitted, got %v", err)
	}
	if err := c.SetReference(first.ID, "ref"); err != ErrSplitSubmitted {
		t.Fatalf("SetReference: expected ErrSplitSubmitted, got %v", err)
	}
	if err := c.ToggleLock(first.ID); err != ErrSplitSubmitted {
		t.Fatalf("ToggleLock: expected ErrSplitSubmitted, got %v", err)
	}
	if err := c.RemoveSplit(first.ID); err != ErrSplitSubmitted {
		t.Fatalf("RemoveSplit: expected ErrSplitSubmitted, got %v", err)
	}

	got := c.Splits()[0]
	if got.AmountCents != 500 || !got.Submitted {
		t.Fatalf("submitted split must be untouched, got %+v", got)
	}
	if len(c.Splits()) != 2 {
		t.Fatalf("submitted split must not be removable")
	}
}

func TestRemoveLastActiveSplitFails(t *testing.T) {
	c := NewController()
	only := c.Splits()[0]
	if err := c.RemoveSplit(only.ID); err != ErrLastSplit {
		t.Fatalf("expected ErrLastSplit, got %v", err)
	}
}

func TestUnknownSplitID(t *testing.T) {
	c := NewController()
	if err := c.UpdateAmount("nope", 100); err != ErrSplitNotFound {
		t.Fatalf("expected ErrSplitNotFound, got %v", err)
	}
	if err := c.ToggleLock("nope"); err != ErrSplitNotFound {
		t.Fatalf("expected ErrSplitNotFound, got %v", err)
	}
}
