package site

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	json "github.com/goccy/go-json"
	"github.com/russross/blackfriday/v2"

	"github.com/rendis/patternlab/pkg/schema"
)

// markdown renders topic summaries. Summaries are authored alongside the
// code, so the output is trusted.
func markdown(s string) template.HTML {
	return template.HTML(blackfriday.Run([]byte(s)))
}

// safeHTML marks server-rendered SVG as safe to inline.
func safeHTML(s string) template.HTML {
	return template.HTML(s)
}

// percent formats a 0..1 fraction as a CSS width.
func percent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response whose status follows the error
// code.
func writeError(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	var pe *schema.PatternError
	if errors.As(err, &pe) {
		body["error"] = pe.Message
		body["code"] = pe.Code
		if pe.Details != nil {
			body["details"] = pe.Details
		}
	}
	writeJSON(w, statusFor(err), body)
}

// statusFor maps error codes to HTTP statuses.
func statusFor(err error) int {
	switch schema.CodeOf(err) {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeValidation:
		return http.StatusBadRequest
	case schema.ErrCodeConflict:
		return http.StatusConflict
	case schema.ErrCodeClosed:
		return http.StatusGone
	case schema.ErrCodeExpression:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeValidation, "%s must be an integer", key)
	}
	return n, nil
}

// decodeJSON decodes a request body, mapping failures to VALIDATION_ERROR.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid JSON: %s", err.Error())
	}
	return nil
}

// accessLog logs one line per request with the status and duration.
func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		level := slog.LevelDebug
		if m.Code >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration", m.Duration,
		)
	})
}
