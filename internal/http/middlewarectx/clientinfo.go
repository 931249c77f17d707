package middlewarectx

import (
	"net"
	"net/http"

	"github.com/uxerra/studio-api/internal/lib/clientinfo"
)

// ClientInfo кладет IP и User-Agent клиента в контекст для журнала аудита.
// Ставится после middleware.RealIP.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := clientinfo.With(r.Context(), clientinfo.Info{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
