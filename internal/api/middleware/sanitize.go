package middleware

import (
	"net/http"
	"strings"

	"github.com/Wikid82/proxybot/internal/util"
)

const maxLoggedValue = 200

var sensitiveHeaders = map[string]struct{}{
	"authorization":       {},
	"cookie":              {},
	"set-cookie":          {},
	"proxy-authorization": {},
	"x-api-key":           {},
	"x-auth-token":        {},
	"x-forwarded-for":     {},
}

// SanitizeHeaders returns header values safe for logging. Credentials are
// redacted and every other value is stripped of control characters and
// clipped.
func SanitizeHeaders(h http.Header) map[string][]string {
	if h == nil {
		return nil
	}
	out := make(map[string][]string, len(h))
	for k, vals := range h {
		if _, ok := sensitiveHeaders[strings.ToLower(k)]; ok {
			out[k] = []string{"<redacted>"}
			continue
		}
		clean := make([]string, 0, len(vals))
		for _, v := range vals {
			clean = append(clean, clip(util.SanitizeForLog(v)))
		}
		out[k] = clean
	}
	return out
}

// SanitizePath drops the query string and control characters from p.
func SanitizePath(p string) string {
	if i := strings.IndexByte(p, '?'); i != -1 {
		p = p[:i]
	}
	return clip(util.SanitizeForLog(p))
}

func clip(s string) string {
	if len(s) > maxLoggedValue {
		return s[:maxLoggedValue]
	}
	return s
}
