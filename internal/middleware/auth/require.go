package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/models"
)

func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := PrincipalFrom(c); !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		return next(c)
	}
}

func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		switch p.Role {
		case models.RoleAdmin:
			return next(c)
		case models.RoleCustomer:
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		default:
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
	}
}
