// Package middleware hydrates HTTP request bodies into records.
package middleware

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/reoring/cabinet"
	"github.com/reoring/cabinet/source"
)

// ctxKeyRecord is the context key for the hydrated record.
type ctxKeyRecord struct{}

// ContextWithRecord attaches a record to the context.
func ContextWithRecord(ctx context.Context, rec *cabinet.Record) context.Context {
	return context.WithValue(ctx, ctxKeyRecord{}, rec)
}

// RecordFromContext retrieves the record stored by Hydrate.
func RecordFromContext(ctx context.Context) (*cabinet.Record, bool) {
	rec, ok := ctx.Value(ctxKeyRecord{}).(*cabinet.Record)
	return rec, ok && rec != nil
}

// Options configures Hydrate.
type Options struct {
	// MaxBytes caps the request body; zero means 1 MiB.
	MaxBytes int64
	// Eager resolves the whole record graph before calling the next handler
	// so construction failures become 422 responses.
	Eager bool
	// Services decorates the request context before construction, typically
	// with cabinet.WithService.
	Services func(ctx context.Context) context.Context
	Logger   *zerolog.Logger
}

const defaultMaxBytes = 1 << 20

// DefaultOptions returns the recommended options for HTTP boundaries.
func DefaultOptions() Options {
	return Options{MaxBytes: defaultMaxBytes, Eager: true}
}

// Hydrate builds a record of typ from the request body (JSON with repeated
// keys rejected, or YAML when the content type says so) and passes it to next
// through the request context.
func Hydrate(typ *cabinet.RecordType, opts Options) func(http.Handler) http.Handler {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	lg := zerolog.Nop()
	if opts.Logger != nil {
		lg = *opts.Logger
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if opts.Services != nil {
				ctx = opts.Services(ctx)
			}
			body := http.MaxBytesReader(w, r.Body, opts.MaxBytes)
			raw, err := readBody(body, r.Header.Get("Content-Type"))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeError(w, http.StatusRequestEntityTooLarge, err)
					return
				}
				lg.Debug().Err(err).Str("type", typ.Name()).Msg("request body rejected")
				writeError(w, http.StatusBadRequest, err)
				return
			}
			rec, err := cabinet.New(ctx, typ, raw)
			if err == nil && opts.Eager {
				_, err = rec.Export(ctx)
			}
			if err != nil {
				lg.Warn().Err(err).Str("type", typ.Name()).Msg("record construction failed")
				writeError(w, http.StatusUnprocessableEntity, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithRecord(ctx, rec)))
		})
	}
}

func readBody(r io.Reader, contentType string) (map[string]any, error) {
	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return source.Read(r, source.FormatYAML)
	}
	return source.ReadStrict(r, source.FormatJSON)
}

// ErrorPayload shapes an error for JSON responses. Issues are listed as they
// are; other errors become a single message.
func ErrorPayload(err error) map[string]any {
	if iss, ok := cabinet.AsIssues(err); ok {
		out := make([]map[string]any, len(iss))
		for i, it := range iss {
			m := map[string]any{"path": it.Path, "code": it.Code, "message": it.Message}
			if it.Type != "" {
				m["type"] = it.Type
			}
			if it.Cause != nil {
				m["cause"] = it.Cause.Error()
			}
			out[i] = m
		}
		return map[string]any{"issues": out}
	}
	return map[string]any{"error": err.Error()}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorPayload(err))
}
