package httputil

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// SourceType records which surface an operator action came through.
type SourceType int

const (
	SourceTypeUnknown SourceType = iota
	SourceTypeWeb
	SourceTypeCLI
	SourceTypeAPI
)

func (s SourceType) String() string {
	switch s {
	case SourceTypeWeb:
		return "web"
	case SourceTypeCLI:
		return "cli"
	case SourceTypeAPI:
		return "api"
	default:
		return "unknown"
	}
}

// Headers recognised by NewRequestContext.
const (
	HeaderSource   = "X-Console-Source"
	HeaderOperator = "X-Console-Operator"
)

// RequestContext carries who performed an operator action and from where.
// It feeds the audit trail.
type RequestContext struct {
	IP         net.IP
	SourceType SourceType
	Operator   string
	UserAgent  string
}

type requestContextKey struct{}

// NewRequestContext derives a RequestContext from an HTTP request.
// X-Console-Source wins; otherwise a user agent mentioning alarmctl marks a CLI call
// and anything else is treated as the web page.
func NewRequestContext(r *http.Request) *RequestContext {
	ipStr := GetClientIP(r)
	if host, _, err := net.SplitHostPort(ipStr); err == nil {
		ipStr = host
	}

	rc := &RequestContext{
		IP:        net.ParseIP(ipStr),
		Operator:  r.Header.Get(HeaderOperator),
		UserAgent: r.Header.Get("User-Agent"),
	}

	switch strings.ToLower(r.Header.Get(HeaderSource)) {
	case "web":
		rc.SourceType = SourceTypeWeb
	case "cli":
		rc.SourceType = SourceTypeCLI
	case "api":
		rc.SourceType = SourceTypeAPI
	case "":
		if strings.Contains(strings.ToLower(rc.UserAgent), "alarmctl") {
			rc.SourceType = SourceTypeCLI
		} else {
			rc.SourceType = SourceTypeWeb
		}
	}
	return rc
}

func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// GetRequestContext returns the RequestContext stored in ctx, or nil.
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestContextKey{}).(*RequestContext); ok {
		return rc
	}
	return nil
}

// IPString returns the IP address as a string, or "" if unknown.
func (rc *RequestContext) IPString() string {
	if rc == nil || rc.IP == nil {
		return ""
	}
	return rc.IP.String()
}

// GetClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then RemoteAddr.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// ParseIntParam parses an integer query parameter, returning defaultVal when empty or invalid.
func ParseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultVal
}
