package server

import (
	"net"
	"strings"

	"github.com/labstack/echo/v4"
)

// identifierFromRequest derives the opaque rate-limiter key for a caller:
// the first X-Forwarded-For element, else the transport peer address, else
// "unknown_user". "anonymous" is the sentinel when no request context exists.
func identifierFromRequest(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return "anonymous"
	}
	req := c.Request()
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if req.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil && host != "" {
			return host
		}
		return req.RemoteAddr
	}
	return "unknown_user"
}
