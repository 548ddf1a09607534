package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	storegate "github.com/kaelgrist/storegate"
)

// NewHandler returns the HTTP surface for the engine: a stdlib mux with
// method-qualified routes.
func NewHandler(engine *storegate.Engine) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /device/check", deviceCheckHandler(engine))
	mux.HandleFunc("POST /otp/request", otpRequestHandler(engine))
	mux.HandleFunc("POST /otp/verify", otpVerifyHandler(engine))
	mux.HandleFunc("PUT /settings/device-limit", deviceLimitHandler(engine))
	mux.HandleFunc("PUT /settings/deny-message", denyMessageHandler(engine))
	return mux
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type deviceCheckRequest struct {
	AccountID string `json:"accountId"`
	DeviceID  string `json:"deviceId"`
}

func deviceCheckHandler(engine *storegate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deviceCheckRequest
		if !decodeBody(w, r, &req) {
			return
		}

		decision, err := engine.CheckDevice(withCallerIP(r), req.AccountID, req.DeviceID)
		if err != nil {
			writeEngineError(w, err, "accountId and deviceId are required")
			return
		}

		if decision.Allowed {
			writeJSON(w, http.StatusOK, statusResponse{Status: "allowed"})
			return
		}
		writeJSON(w, http.StatusForbidden, statusResponse{
			Status:  "denied",
			Message: decision.Message,
		})
	}
}

type otpRequestRequest struct {
	AccountID string `json:"accountId"`
	Address   string `json:"address"`
}

func otpRequestHandler(engine *storegate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req otpRequestRequest
		if !decodeBody(w, r, &req) {
			return
		}

		// Delivery failures are downgraded inside the engine: the code is
		// durably stored before the send, so a resend recovers it.
		if _, err := engine.IssueCode(withCallerIP(r), req.AccountID, req.Address); err != nil {
			writeEngineError(w, err, "accountId and address are required")
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{Status: "sent"})
	}
}

type otpVerifyRequest struct {
	AccountID          string `json:"accountId"`
	ExternalCustomerID string `json:"externalCustomerId"`
	Code               string `json:"code"`
}

func otpVerifyHandler(engine *storegate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req otpVerifyRequest
		if !decodeBody(w, r, &req) {
			return
		}

		err := engine.VerifyCode(withCallerIP(r), req.AccountID, req.ExternalCustomerID, req.Code)
		if err != nil {
			writeEngineError(w, err, "accountId, externalCustomerId and code are required")
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{Status: "verified"})
	}
}

type deviceLimitRequest struct {
	AccountID string `json:"accountId"`
	Limit     int    `json:"limit"`
}

func deviceLimitHandler(engine *storegate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req deviceLimitRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := engine.SetDeviceLimit(withCallerIP(r), req.AccountID, req.Limit); err != nil {
			writeEngineError(w, err, "accountId and a positive limit are required")
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{Status: "updated"})
	}
}

type denyMessageRequest struct {
	Message string `json:"message"`
}

func denyMessageHandler(engine *storegate.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req denyMessageRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := engine.SetDenyMessage(withCallerIP(r), req.Message); err != nil {
			writeEngineError(w, err, "invalid deny message")
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{Status: "updated"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{
			Status:  "error",
			Message: "malformed request body",
		})
		return false
	}
	return true
}

func writeEngineError(w http.ResponseWriter, err error, badRequestMessage string) {
	switch {
	case errors.Is(err, storegate.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: badRequestMessage})
	case errors.Is(err, storegate.ErrInvalidLimit):
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "device limit must be a positive integer"})
	case errors.Is(err, storegate.ErrCodeInvalid):
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "incorrect verification code"})
	case errors.Is(err, storegate.ErrCodeExpired):
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "verification code expired, request a new one"})
	case errors.Is(err, storegate.ErrCodeNotFound):
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: "error", Message: "no active verification code, request a new one"})
	case errors.Is(err, storegate.ErrIssueRateLimited):
		writeJSON(w, http.StatusTooManyRequests, statusResponse{Status: "error", Message: "too many code requests, try again later"})
	default:
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: "error", Message: "temporary storage failure"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withCallerIP(r *http.Request) context.Context {
	return storegate.WithClientIP(r.Context(), callerIP(r))
}

func callerIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
