package auth

import (
	"net/http"
	"strings"
	"time"
)

// CookieName is the cookie that carries the session token.
const CookieName = "token"

// ExtractToken returns the session token from a raw Cookie header, or "" if
// there is none. The header is a list of name=value pairs separated by "; ".
// Pairs without "=" are skipped; nothing here ever fails.
func ExtractToken(cookieHeader string) string {
	for _, pair := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		if strings.TrimSpace(name) == CookieName {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// TokenFromRequest reads the session token from every Cookie header on r.
func TokenFromRequest(r *http.Request) string {
	for _, header := range r.Header.Values("Cookie") {
		if token := ExtractToken(header); token != "" {
			return token
		}
	}
	return ""
}

// SetSessionCookie writes the session cookie:
//
//	Set-Cookie: token=<opaque>; Path=/; Max-Age=86400; HttpOnly; SameSite=Lax
//
// Secure is left to the deployment (set secure=true behind HTTPS).
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
