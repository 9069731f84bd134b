package http

import (
	"net/http"
	"time"
)

// DefaultCookieName carries the __Host- prefix, which browsers only accept
// over HTTPS with Path=/ and no Domain attribute. That pins the cookie to
// this exact host.
const DefaultCookieName = "__Host-passport"

// CookieTransport moves the opaque session token in and out of an HTTP
// exchange as a hardened cookie. One is built per request; it implements
// service.Transport.
type CookieTransport struct {
	Name string

	w http.ResponseWriter
	r *http.Request
}

func NewCookieTransport(name string, w http.ResponseWriter, r *http.Request) *CookieTransport {
	if name == "" {
		name = DefaultCookieName
	}
	return &CookieTransport{Name: name, w: w, r: r}
}

// Token returns the inbound cookie value, if the client sent one.
func (c *CookieTransport) Token() (string, bool) {
	cookie, err := c.r.Cookie(c.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// SetToken writes the session cookie. HttpOnly keeps scripts away from the
// token; Secure and Path=/ satisfy the __Host- prefix rules.
func (c *CookieTransport) SetToken(token string, ttl time.Duration) error {
	http.SetCookie(c.w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearToken instructs the client to drop the cookie.
func (c *CookieTransport) ClearToken() {
	http.SetCookie(c.w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
