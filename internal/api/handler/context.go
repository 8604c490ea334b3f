package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/powerbill/electricity-records/internal/api/middleware"
	"github.com/powerbill/electricity-records/internal/core/domain"
)

// ctxPrincipal extracts the principal injected by the Auth middleware and
// fails fast when it is missing, before any service call.
func ctxPrincipal(c echo.Context) (domain.Principal, error) {
	p := middleware.PrincipalFrom(c)
	if !p.Authenticated() {
		return domain.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return p, nil
}
