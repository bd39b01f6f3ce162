package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	authsvc "github.com/Skotchmaster/bookstore/internal/service/auth"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// Cookies writes and clears the auth cookie pair.
type Cookies struct {
	Secure bool
	Path   string
}

func (k Cookies) path() string {
	if k.Path == "" {
		return "/"
	}
	return k.Path
}

func (k Cookies) create(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     k.path(),
		Expires:  exp,
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (k Cookies) Set(c echo.Context, pair *authsvc.TokenPair) {
	c.SetCookie(k.create(AccessCookie, pair.AccessToken, pair.ExpiresAt))
	c.SetCookie(k.create(RefreshCookie, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (k Cookies) Clear(c echo.Context) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		ck := k.create(name, "", time.Unix(0, 0))
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

func cookieValue(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
