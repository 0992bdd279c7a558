package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/fundgate/internal/services"
	"github.com/huangang/fundgate/pkg/logger"
	"github.com/huangang/fundgate/pkg/response"
)

// respondError writes err using the status that matches its kind.
// A settlement failure carries the ledger entry so callers can retry or audit it.
func respondError(c *gin.Context, err error) {
	var settleErr *services.SettlementError
	if errors.As(err, &settleErr) {
		c.JSON(http.StatusBadGateway, response.Response{
			Code:    http.StatusBadGateway,
			Message: err.Error(),
			Data:    settleErr.Entry,
		})
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, response.Response{Code: status, Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrPrecondition),
		errors.Is(err, services.ErrDuplicate),
		errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrSettlement):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// paramID parses the :name path segment, answering 400 itself when it is not an ID.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
