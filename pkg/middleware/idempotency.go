package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fkhayef/settleup/pkg/idempotency"
	"github.com/fkhayef/settleup/pkg/response"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

// Idempotency replays the stored response when a POST is retried with the
// same Idempotency-Key. Keys are scoped to the caller, method and path.
//
// Requests without the header, non-POST requests and a nil store pass
// through. If the store is unreachable the request runs anyway. Responses
// with a 5xx status are not stored, so the client may retry them.
func Idempotency(store idempotency.Store, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			userID, _ := GetUserID(r.Context())
			scoped := userID + ":" + r.Method + ":" + r.URL.Path + ":" + key
			ctx := r.Context()

			claimed, err := store.Claim(ctx, scoped, ttl)
			if err != nil {
				slog.Warn("idempotency store unavailable, running request", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !claimed {
				replay(ctx, w, store, scoped)
				return
			}

			var body bytes.Buffer
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			// The client may have gone away; the record must still be written.
			storeCtx := context.WithoutCancel(ctx)
			if status >= 500 {
				if err := store.Release(storeCtx, scoped); err != nil {
					slog.Warn("failed to release idempotency key", "error", err)
				}
				return
			}

			rec := idempotency.Record{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        body.Bytes(),
			}
			if err := store.Save(storeCtx, scoped, rec, ttl); err != nil {
				slog.Warn("failed to save idempotency record", "error", err)
			}
		})
	}
}

func replay(ctx context.Context, w http.ResponseWriter, store idempotency.Store, key string) {
	rec, err := store.Load(ctx, key)
	if err != nil {
		slog.Warn("failed to load idempotency record", "error", err)
		response.ServiceUnavailable(w, "Could not verify idempotency key")
		return
	}
	if rec == nil || rec.Pending {
		response.Conflict(w, "A request with this idempotency key is already in progress")
		return
	}

	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(rec.Status)
	w.Write(rec.Body)
}
