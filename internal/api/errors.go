package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"powtoken/internal/accounts"
	"powtoken/internal/auth"
	"powtoken/internal/ledger"
)

// statusFor maps an action error to an HTTP status and stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, auth.ErrBadSignature),
		errors.Is(err, auth.ErrStaleRequest):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, accounts.ErrInvalidName), errors.Is(err, accounts.ErrInvalidKey):
		return http.StatusBadRequest, "invalid_account"
	case errors.Is(err, accounts.ErrExists):
		return http.StatusConflict, "account_exists"
	case errors.Is(err, accounts.ErrNotFound):
		return http.StatusNotFound, "unknown_account"
	}

	code := ledger.Code(err)
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden, code
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrUnknownAccount):
		return http.StatusNotFound, code
	case errors.Is(err, ledger.ErrAlreadyExists):
		return http.StatusConflict, code
	case errors.Is(err, ledger.ErrOverdrawn),
		errors.Is(err, ledger.ErrSupplyExceeded),
		errors.Is(err, ledger.ErrInvalidNonce):
		return http.StatusUnprocessableEntity, code
	case ledger.IsRejection(err):
		return http.StatusBadRequest, code
	}
	return http.StatusInternalServerError, "internal"
}

// abortWithError writes err as JSON and stops the handler chain.
func abortWithError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "bad_request"})
}
