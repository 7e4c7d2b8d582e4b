package http

import (
	"net/http"
	"strconv"

	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
	"github.com/Maxim80/devman-async-sms-mailings/internal/repository"
	echo "github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

type mailingsPage struct {
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	Count   int             `json:"count"`
	Results []model.Mailing `json:"results"`
}

// queryInt reads a non-negative integer query param, returning def when it is absent.
func queryInt(c echo.Context, name string, def int) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// listMailingsHandler pages through the archive, newest first.
func listMailingsHandler(archive repository.MailingArchive) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, ok := queryInt(c, "limit", defaultPageSize)
		if !ok || limit == 0 || limit > maxPageSize {
			return c.JSON(http.StatusBadRequest, errorBody{ErrorMessage: "limit must be between 1 and 1000"})
		}
		offset, ok := queryInt(c, "offset", 0)
		if !ok {
			return c.JSON(http.StatusBadRequest, errorBody{ErrorMessage: "offset must be a non-negative integer"})
		}

		mailings, err := archive.ListRecent(c.Request().Context(), limit, offset)
		if err != nil {
			c.Logger().Errorf("archive query: %v", err)
			return c.JSON(http.StatusInternalServerError, errorBody{ErrorMessage: "Internal error"})
		}
		if mailings == nil {
			mailings = []model.Mailing{}
		}

		return c.JSON(http.StatusOK, mailingsPage{
			Limit:   limit,
			Offset:  offset,
			Count:   len(mailings),
			Results: mailings,
		})
	}
}
