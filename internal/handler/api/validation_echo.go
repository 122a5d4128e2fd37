package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"SignalFleet/internal/domain/models"
	domrepo "SignalFleet/internal/domain/repository"
	xhttp "SignalFleet/pkg/http"
	applogger "SignalFleet/pkg/logger"

	"github.com/labstack/echo/v4"
)

const serviceName = "validation-service"

type FleetValidator interface {
	ValidateAll(ctx context.Context) (*models.FleetReport, error)
}

type DataflowTester interface {
	Run(ctx context.Context) (*models.CorrelationRecord, error)
}

type ScriptValidator interface {
	ValidateAll(ctx context.Context) (*models.ScriptReport, error)
}

// ValidationEchoHandler exposes the validation routes consumed by the dashboard.
type ValidationEchoHandler struct {
	logger   *applogger.Logger
	fleet    FleetValidator
	dataflow DataflowTester
	scripts  ScriptValidator
	reports  domrepo.ReportStore
	now      func() time.Time
}

func NewValidationEchoHandler(
	logger *applogger.Logger,
	fleet FleetValidator,
	dataflow DataflowTester,
	scripts ScriptValidator,
	reports domrepo.ReportStore,
) *ValidationEchoHandler {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &ValidationEchoHandler{
		logger:   logger,
		fleet:    fleet,
		dataflow: dataflow,
		scripts:  scripts,
		reports:  reports,
		now:      time.Now,
	}
}

func (h *ValidationEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/validate-all", h.ValidateAll)
	e.GET("/test-dataflow", h.TestDataflow)
	e.GET("/validate-scripts", h.ValidateScripts)
	e.GET("/validation/last", h.LastReport)
}

func (h *ValidationEchoHandler) Health(c echo.Context) error {
	return xhttp.RawResponse(c, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   serviceName,
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}

// ValidateAll answers 200 whenever the checks ran, even for an unhealthy fleet.
func (h *ValidationEchoHandler) ValidateAll(c echo.Context) error {
	if h.fleet == nil {
		return h.machineryError(c, "validate-all", errors.New("fleet validator not configured"))
	}
	report, err := h.fleet.ValidateAll(c.Request().Context())
	if err != nil {
		return h.machineryError(c, "validate-all", err)
	}
	return xhttp.RawResponse(c, http.StatusOK, map[string]interface{}{"results": report.Results})
}

func (h *ValidationEchoHandler) TestDataflow(c echo.Context) error {
	if h.dataflow == nil {
		return h.machineryError(c, "test-dataflow", errors.New("dataflow correlator not configured"))
	}
	rec, err := h.dataflow.Run(c.Request().Context())
	if err != nil {
		return h.machineryError(c, "test-dataflow", err)
	}
	return xhttp.RawResponse(c, http.StatusOK, map[string]interface{}{"success": rec.Success()})
}

func (h *ValidationEchoHandler) ValidateScripts(c echo.Context) error {
	if h.scripts == nil {
		return h.machineryError(c, "validate-scripts", errors.New("script validator not configured"))
	}
	report, err := h.scripts.ValidateAll(c.Request().Context())
	if err != nil {
		return h.machineryError(c, "validate-scripts", err)
	}
	return xhttp.RawResponse(c, http.StatusOK, report)
}

// LastReport returns the report stored by the scheduler.
func (h *ValidationEchoHandler) LastReport(c echo.Context) error {
	if h.reports == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no validation report yet"))
	}
	report, err := h.reports.LatestFleetReport(c.Request().Context())
	if errors.Is(err, domrepo.ErrReportNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no validation report yet"))
	}
	if err != nil {
		h.logger.Error("load validation report", applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("load validation report").WithError(err))
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *ValidationEchoHandler) machineryError(c echo.Context, route string, err error) error {
	h.logger.Error("validation route failed", applogger.String("route", route), applogger.Error(err))
	return xhttp.ErrorMessageResponse(c, http.StatusInternalServerError, err)
}
