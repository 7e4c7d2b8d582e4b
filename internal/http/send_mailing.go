package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/Maxim80/devman-async-sms-mailings/internal/errs"
	"github.com/Maxim80/devman-async-sms-mailings/internal/gateway"
	"github.com/Maxim80/devman-async-sms-mailings/internal/service/dispatch"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Dispatcher sends a mailing; empty recipients select the configured list.
type Dispatcher interface {
	Dispatch(ctx context.Context, text, recipients string) (dispatch.Result, error)
}

type errorBody struct {
	ErrorMessage string `json:"errorMessage"`
}

// sendMailingHandler accepts the form field "text". Recipients always come
// from server configuration.
func sendMailingHandler(d Dispatcher, lg *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		text := c.FormValue("text")

		res, err := d.Dispatch(c.Request().Context(), text, "")
		if err != nil {
			status, msg := errorResponse(err)
			if status >= http.StatusInternalServerError {
				lg.Error("send mailing failed", zap.Int("status", status), zap.Error(err))
			}
			return c.JSON(status, errorBody{ErrorMessage: msg})
		}

		return c.JSON(http.StatusOK, res)
	}
}

func errorResponse(err error) (int, string) {
	var gerr *gateway.Error
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &gerr) && gerr.Kind == gateway.KindAPI:
		return http.StatusBadGateway, gerr.Message
	case errors.As(err, &gerr):
		return http.StatusBadGateway, "SMS gateway is unavailable, try again later"
	case errors.Is(err, errs.ErrConfiguration):
		return http.StatusInternalServerError, "SMS sending is not configured"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
