package middleware

import "net/http"

// SitecHeader carries the secondary tenant unit of a request
const SitecHeader = "X-Sitec-ID"

const sitecQueryParam = "sitec_id"

// ExtractSitec returns the sitec id from the X-Sitec-ID header, then the
// sitec_id query parameter, or "" when neither is set
func ExtractSitec(r *http.Request) string {
	if sitec := r.Header.Get(SitecHeader); sitec != "" {
		return sitec
	}
	return r.URL.Query().Get(sitecQueryParam)
}

// Sitec stores the request's sitec id in the context
func Sitec(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithSitec(r.Context(), ExtractSitec(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
