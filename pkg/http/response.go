package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes data inside the APIResponse envelope.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return c.JSON(http.StatusBadRequest, APIResponse400Err{
		Status:  http.StatusBadRequest,
		Message: http.StatusText(http.StatusBadRequest),
		Data:    errs,
	})
}

// RawResponse writes v without the envelope, for routes with a fixed wire contract.
func RawResponse(c echo.Context, statusCode int, v interface{}) error {
	return c.JSON(statusCode, v)
}

// ErrorMessageResponse writes {"error": msg} without the envelope.
func ErrorMessageResponse(c echo.Context, statusCode int, err error) error {
	return c.JSON(statusCode, ErrorBody{Error: err.Error()})
}

// AppErrorResponse writes err in the envelope. Errors that are not an
// *AppError become a generic 500 so internals never leak.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError("Something went wrong")
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
