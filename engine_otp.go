package storegate

import (
	"context"
	"errors"
	"time"

	"github.com/kaelgrist/storegate/internal"
)

// IssueCode issues or reuses the account's verification passcode and hands
// it to the email collaborator for delivery to address.
//
// With no live code, a fresh uniformly random six-digit code is stored with
// a full validity window. A live, unexpired code is returned unchanged —
// resend is idempotent and does NOT reset the window. An expired record is
// replaced by a fresh code with a fresh window.
//
// Delivery failure is deliberately soft: the code is already durably stored,
// so the engine audits the failure and still returns the code rather than
// re-issuing or invalidating it.
func (e *Engine) IssueCode(ctx context.Context, accountID, address string) (string, error) {
	if e == nil || e.otpStore == nil || e.sender == nil {
		return "", ErrEngineNotReady
	}

	if accountID == "" || address == "" {
		e.emitAudit(ctx, auditEventCodeIssueFailure, false, accountID, "", ErrInvalidRequest, func() map[string]string {
			return map[string]string{
				"reason": "missing_identifier",
			}
		})
		return "", ErrInvalidRequest
	}

	if err := e.issueLimiter.CheckIssue(ctx, accountID, clientIPFromContext(ctx)); err != nil {
		if errors.Is(err, errIssueThrottled) {
			e.metricInc(MetricCodeIssueThrottled)
			e.emitAudit(ctx, auditEventCodeIssueThrottled, false, accountID, "", ErrIssueRateLimited, nil)
			return "", ErrIssueRateLimited
		}
		return "", e.issueStorageFailure(ctx, accountID, err)
	}

	code, reused, err := e.issueOrReuse(ctx, accountID)
	if err != nil {
		return "", e.issueStorageFailure(ctx, accountID, err)
	}

	if reused {
		e.metricInc(MetricCodeReissued)
		e.emitAudit(ctx, auditEventCodeReissued, true, accountID, "", nil, nil)
	} else {
		e.metricInc(MetricCodeIssued)
		e.emitAudit(ctx, auditEventCodeIssued, true, accountID, "", nil, nil)
	}

	if err := e.sender.SendCode(ctx, address, code); err != nil {
		e.metricInc(MetricCodeSendFailure)
		e.emitAudit(ctx, auditEventCodeSendFailure, false, accountID, "", nil, func() map[string]string {
			return map[string]string{
				"cause": err.Error(),
			}
		})
	}

	return code, nil
}

func (e *Engine) issueOrReuse(ctx context.Context, accountID string) (string, bool, error) {
	record, err := e.otpStore.Peek(ctx, accountID)
	switch {
	case err == nil:
		return record.Code, true, nil
	case errors.Is(err, errOTPNotFound), errors.Is(err, errOTPExpired):
		// Absent, or lazily expired on read: both take the fresh-issue branch.
	default:
		return "", false, err
	}

	code, err := internal.NewCode()
	if err != nil {
		return "", false, err
	}

	ttl := e.config.OTP.CodeTTL
	fresh := &otpRecord{
		Code:      code,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	}
	if err := e.otpStore.Upsert(ctx, accountID, fresh, ttl); err != nil {
		return "", false, err
	}

	return code, false, nil
}

// VerifyCode checks the submitted passcode and, on success, applies the
// verified tag to the external customer record.
//
// A nil return means Verified: the stored record was deleted in the same
// conditional operation that matched it, so a concurrent duplicate verify
// observes [ErrCodeNotFound]. [ErrCodeInvalid] leaves the record intact for
// a retry inside the window; [ErrCodeExpired] deletes the record as a side
// effect.
//
// A tag-mutation failure after consumption does not re-grant the attempt:
// the code is spent, the failure is audited, and the caller still sees
// Verified. Recovering the tag is an out-of-band concern.
func (e *Engine) VerifyCode(ctx context.Context, accountID, externalCustomerID, submitted string) error {
	if e == nil || e.otpStore == nil || e.tagMutator == nil {
		return ErrEngineNotReady
	}
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}
	}()

	if accountID == "" || externalCustomerID == "" || submitted == "" {
		e.emitAudit(ctx, auditEventVerifyFailure, false, accountID, "", ErrInvalidRequest, func() map[string]string {
			return map[string]string{
				"reason": "missing_identifier",
			}
		})
		return ErrInvalidRequest
	}

	if err := e.otpStore.Consume(ctx, accountID, submitted); err != nil {
		mapped := mapOTPStoreError(err)
		switch {
		case errors.Is(mapped, ErrCodeNotFound):
			e.metricInc(MetricVerifyNotFound)
		case errors.Is(mapped, ErrCodeExpired):
			e.metricInc(MetricVerifyExpired)
		case errors.Is(mapped, ErrCodeInvalid):
			e.metricInc(MetricVerifyInvalid)
		default:
			e.metricInc(MetricStorageFailure)
		}
		e.emitAudit(ctx, auditEventVerifyFailure, false, accountID, "", mapped, nil)
		return mapped
	}

	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventVerifySuccess, true, accountID, "", nil, func() map[string]string {
		return map[string]string{
			"customer_id": externalCustomerID,
		}
	})

	if err := e.tagMutator.AddVerifiedTag(ctx, externalCustomerID); err != nil {
		e.metricInc(MetricTagMutationFailure)
		e.emitAudit(ctx, auditEventTagMutationFailure, false, accountID, "", nil, func() map[string]string {
			return map[string]string{
				"customer_id": externalCustomerID,
				"cause":       err.Error(),
			}
		})
	}

	return nil
}

func (e *Engine) issueStorageFailure(ctx context.Context, accountID string, err error) error {
	e.metricInc(MetricStorageFailure)
	e.emitAudit(ctx, auditEventCodeIssueFailure, false, accountID, "", ErrStorageUnavailable, func() map[string]string {
		return map[string]string{
			"cause": err.Error(),
		}
	})
	return ErrStorageUnavailable
}

func mapOTPStoreError(err error) error {
	switch {
	case errors.Is(err, errOTPNotFound):
		return ErrCodeNotFound
	case errors.Is(err, errOTPExpired):
		return ErrCodeExpired
	case errors.Is(err, errOTPMismatch):
		return ErrCodeInvalid
	default:
		return ErrStorageUnavailable
	}
}
