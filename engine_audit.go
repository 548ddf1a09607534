package storegate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventDeviceAllowed      = "device_allowed"
	auditEventDeviceBound        = "device_bound"
	auditEventDeviceDenied       = "device_denied"
	auditEventDeviceCheckFailure = "device_check_failure"
	auditEventCodeIssued         = "code_issued"
	auditEventCodeReissued       = "code_reissued"
	auditEventCodeIssueThrottled = "code_issue_throttled"
	auditEventCodeIssueFailure   = "code_issue_failure"
	auditEventCodeSendFailure    = "code_send_failure"
	auditEventVerifySuccess      = "verify_success"
	auditEventVerifyFailure      = "verify_failure"
	auditEventTagMutationFailure = "tag_mutation_failure"
	auditEventLimitConfigured    = "device_limit_configured"
	auditEventDenyMessageSet     = "deny_message_configured"
)

// AuditErrorCode defines a public type used by storegate APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidRequest AuditErrorCode = "invalid_request"
	auditErrInvalidLimit   AuditErrorCode = "invalid_limit"
	auditErrCodeNotFound   AuditErrorCode = "code_not_found"
	auditErrCodeExpired    AuditErrorCode = "code_expired"
	auditErrCodeInvalid    AuditErrorCode = "code_invalid"
	auditErrRateLimited    AuditErrorCode = "rate_limited"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	deviceID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		DeviceID:  deviceID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrInvalidLimit):
		return auditErrInvalidLimit
	case errors.Is(err, ErrCodeNotFound):
		return auditErrCodeNotFound
	case errors.Is(err, ErrCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrIssueRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrStorageUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
