package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	claimTTL     = time.Minute
	maxKeyLength = 255
)

// ScopeFunc namespaces a client key, typically by the authenticated user.
type ScopeFunc func(r *http.Request) string

// Middleware replays stored responses for POST requests that carry an Idempotency-Key.
// A key reused with a different request body is rejected with 422; a key whose first
// request is still running is rejected with 409. Responses with status 5xx are not
// stored so the client can retry them.
func Middleware(store Store, ttl time.Duration, scope ScopeFunc, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(HeaderKey)
			if r.Method != http.MethodPost || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(clientKey) > maxKeyLength {
				writeError(w, http.StatusBadRequest, "idempotency key too long")
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := r.Method + " " + r.URL.Path + " " + clientKey
			if scope != nil {
				key = scope(r) + " " + key
			}
			fp := fingerprint(body)
			ctx := r.Context()

			rec, err := store.Get(ctx, key)
			if err != nil {
				log.Warn("idempotency lookup failed, serving without replay", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if rec != nil {
				replay(w, rec, fp)
				return
			}

			claimed, err := store.Claim(ctx, key, claimTTL)
			if err != nil {
				log.Warn("idempotency claim failed, serving without replay", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				writeError(w, http.StatusConflict, "a request with this idempotency key is in progress")
				return
			}
			defer func() {
				if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
					log.Warn("failed to release idempotency claim", zap.Error(err))
				}
			}()

			// The first request may have saved and released between Get and Claim.
			rec, err = store.Get(ctx, key)
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "idempotency store unavailable")
				return
			}
			if rec != nil {
				replay(w, rec, fp)
				return
			}

			rw := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			if rw.status >= 500 {
				return
			}
			rec = &Record{Status: rw.status, Header: w.Header().Clone(), Body: rw.body.Bytes(), Fingerprint: fp}
			if err := store.Save(context.WithoutCancel(ctx), key, rec, ttl); err != nil {
				log.Warn("failed to store idempotent response", zap.Error(err))
			}
		})
	}
}

func replay(w http.ResponseWriter, rec *Record, fp string) {
	if rec.Fingerprint != fp {
		writeError(w, http.StatusUnprocessableEntity, "idempotency key reused with a different request")
		return
	}
	for k, vs := range rec.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": "IDEMPOTENCY"})
}

// recorder tees the response to the client and a buffer.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
