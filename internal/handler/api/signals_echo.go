package api

import (
	"context"
	"errors"
	"net/http"

	"SignalFleet/internal/domain/models"
	"SignalFleet/internal/usecase"
	xhttp "SignalFleet/pkg/http"
	applogger "SignalFleet/pkg/logger"

	"github.com/labstack/echo/v4"
)

type SignalAcceptor interface {
	Accept(ctx context.Context, req *models.SignalRequest) (*models.SignalAccepted, error)
}

// SignalsEchoHandler is the webhook front door for trading signals.
type SignalsEchoHandler struct {
	logger *applogger.Logger
	ingest SignalAcceptor
	limit  echo.MiddlewareFunc
}

// NewSignalsEchoHandler builds the handler. limit may be nil to disable rate limiting.
func NewSignalsEchoHandler(logger *applogger.Logger, ingest SignalAcceptor, limit echo.MiddlewareFunc) *SignalsEchoHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &SignalsEchoHandler{logger: logger, ingest: ingest, limit: limit}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.limit != nil {
		mw = append(mw, h.limit)
	}
	e.POST("/signals", h.Create, mw...)
}

func (h *SignalsEchoHandler) Create(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	acc, err := h.ingest.Accept(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, usecase.ErrPublish) {
			return xhttp.AppErrorResponse(c, xhttp.UnavailableError("signal broker unavailable").WithError(err))
		}
		h.logger.Error("signal ingest failed", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, acc)
}
