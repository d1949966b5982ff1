package splits

import (
	"errors"

	"kopitiam/backend/internal/domain"
)

const (
	errInvalidAmount   = "invalid amount"
	errNoPaymentMethod = "no payment method"

	reasonNoValidPayment = "no valid payment exists"
	reasonSumMismatch    = "sum of payments does not equal the final total"
)

// sumTolerance absorbs the single cent an integer-division remainder can
// leave between a hand-entered total and the authoritative one.
const sumTolerance = 1

// MethodRule is a pluggable per-method check applied on top of the base
// amount/method validation, e.g. a transfer needing a destination account.
type MethodRule func(split domain.PaymentSplit) error

// RequireTransferReference rejects card transfers without a destination
// account reference.
func RequireTransferReference(split domain.PaymentSplit) error {
	if split.Method == domain.MethodCardTransfer && split.Reference == "" {
		return errors.New("card transfer requires a destination account")
	}
	return nil
}

// Validator decides whether the current split set is submittable. It is
// pure: re-run it against the live splits and total on every change.
type Validator struct {
	Rules []MethodRule
}

// Validate checks every unsubmitted split and the sum of the valid ones
// against the authoritative total. It never fails; all outcomes are carried
// in the returned structure.
func (v Validator) Validate(splits []domain.PaymentSplit, totalCents int64) domain.SplitValidation {
	result := domain.SplitValidation{
		SplitResults:        make([]domain.SplitResult, 0, len(splits)),
		SubmittableSplitIDs: []string{},
	}

	validSum := int64(0)
	considered := 0
	for _, split := range splits {
		if split.Submitted {
			continue
		}
		considered++

		sr := domain.SplitResult{SplitID: split.ID}
		switch {
		case split.AmountCents <= 0:
			sr.Error = errInvalidAmount
		case !split.Method.Valid():
			sr.Error = errNoPaymentMethod
		default:
			sr.Error = v.applyRules(split)
		}

		if sr.Error == "" {
			sr.Valid = true
			validSum += split.AmountCents
			result.SubmittableSplitIDs = append(result.SubmittableSplitIDs, split.ID)
		}
		result.SplitResults = append(result.SplitResults, sr)
	}

	if considered == 0 || len(result.SubmittableSplitIDs) == 0 {
		result.IsBlocking = true
		result.BlockingReason = reasonNoValidPayment
		result.SubmittableSplitIDs = []string{}
		return result
	}

	diff := validSum - totalCents
	if diff < 0 {
		diff = -diff
	}
	if diff > sumTolerance {
		// The valid subset stays reported so a caller may submit it while
		// surfacing the mismatch, though the service blocks entirely.
		result.IsBlocking = true
		result.BlockingReason = reasonSumMismatch
	}
	return result
}

func (v Validator) applyRules(split domain.PaymentSplit) string {
	for _, rule := range v.Rules {
		if rule == nil {
			continue
		}
		if err := rule(split); err != nil {
			return err.Error()
		}
	}
	return ""
}
