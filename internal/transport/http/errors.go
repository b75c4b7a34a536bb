package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "accounts/pkg/domain-errors"
)

// errorEnvelope is the JSON error shape every endpoint returns.
type errorEnvelope struct {
	Message   string            `json:"message"`
	LoginInfo map[string]string `json:"loginInfo,omitempty"`
	ErrorCode string            `json:"errorCode,omitempty"`
}

func statusForCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeUnknownService:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized, dErrors.CodeInvalidToken, dErrors.CodeAuthenticationFailed, dErrors.CodeNoPassword:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates a domain error into the JSON envelope. Non-domain
// errors become an opaque 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	envelope := errorEnvelope{Message: "internal server error", ErrorCode: string(dErrors.CodeInternal)}
	status := http.StatusInternalServerError

	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status = statusForCode(domainErr.Code)
		envelope = errorEnvelope{
			Message:   domainErr.Message,
			LoginInfo: domainErr.LoginInfo,
			ErrorCode: string(domainErr.Code),
		}
		if status == http.StatusInternalServerError {
			envelope.Message = "internal server error"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
