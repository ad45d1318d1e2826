package middleware

import "net/http"

// StatusRecorder receives the final status code of each response.
// metrics.Recorder satisfies it.
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// Metrics reports every response's status code to rec.
func Metrics(rec StatusRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sr := newStatusRecorder(w)
			next.ServeHTTP(sr, r)
			rec.RecordHTTPStatus(sr.statusCode)
		})
	}
}
