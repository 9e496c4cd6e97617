package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const contextKeyRequest contextKey = "audit.request"

// RequestInfo is the client metadata recorded with activity entries.
type RequestInfo struct {
	IP        string
	UserAgent string
}

// ClientIP extracts client ip from common headers or RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// WithRequest stores client metadata from r in ctx.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return WithRequestInfo(ctx, RequestInfo{IP: ClientIP(r), UserAgent: r.UserAgent()})
}

// WithRequestInfo stores client metadata in ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, contextKeyRequest, info)
}

// RequestFromContext returns the stored client metadata.
func RequestFromContext(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	info, _ := ctx.Value(contextKeyRequest).(RequestInfo)
	return info
}
