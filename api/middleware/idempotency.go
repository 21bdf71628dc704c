package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agriconnect/agriconnect-backend/api/responses"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	pkgredis "github.com/agriconnect/agriconnect-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"

	standardReplayTTL = 24 * time.Hour
	moneyReplayTTL    = 7 * 24 * time.Hour
	// inflightTTL bounds how long a crashed request can hold its key.
	inflightTTL = 2 * time.Minute
)

const (
	recordPending = "pending"
	recordDone    = "done"
)

// idempotentRoute matches a method and a path template where "*" stands for
// exactly one path segment.
type idempotentRoute struct {
	method   string
	segments []string
	ttl      time.Duration
}

func idempotent(method, template string, ttl time.Duration) idempotentRoute {
	return idempotentRoute{method: method, segments: splitPath(template), ttl: ttl}
}

// Money moving and order creating routes keep their replay record for a week.
var idempotentRoutes = []idempotentRoute{
	idempotent(http.MethodPost, "/api/v1/offers", standardReplayTTL),
	idempotent(http.MethodPost, "/api/v1/offers/*/counter", standardReplayTTL),
	idempotent(http.MethodPost, "/api/v1/offers/*/reject", standardReplayTTL),
	idempotent(http.MethodDelete, "/api/v1/offers/*", standardReplayTTL),
	idempotent(http.MethodPost, "/api/v1/orders/*/drivers", standardReplayTTL),
	idempotent(http.MethodPost, "/api/v1/orders/*/otp/verify", standardReplayTTL),
	idempotent(http.MethodPost, "/api/v1/orders/*/otp/resend", standardReplayTTL),
	idempotent(http.MethodPost, "/api/v1/driver/orders/*/accept", standardReplayTTL),
	idempotent(http.MethodPost, "/api/v1/driver/orders/*/decline", standardReplayTTL),

	idempotent(http.MethodPost, "/api/v1/offers/*/accept", moneyReplayTTL),
	idempotent(http.MethodPost, "/api/v1/orders/from-offer/*", moneyReplayTTL),
	idempotent(http.MethodPost, "/api/v1/orders/*/cancel", moneyReplayTTL),
	idempotent(http.MethodPost, "/api/v1/orders/*/release", moneyReplayTTL),
	idempotent(http.MethodPost, "/api/v1/driver/orders/*/complete", moneyReplayTTL),
	idempotent(http.MethodPost, "/api/v1/payments/intents", moneyReplayTTL),
	idempotent(http.MethodPost, "/api/v1/payments/verify", moneyReplayTTL),
	idempotent(http.MethodPost, "/api/v1/wallet/withdraw", moneyReplayTTL),
}

func (rt idempotentRoute) matches(method string, segments []string) bool {
	if rt.method != method || len(rt.segments) != len(segments) {
		return false
	}
	for i, want := range rt.segments {
		if want != "*" && want != segments[i] {
			return false
		}
	}
	return true
}

// replayTTL reports whether method and path require an Idempotency-Key and
// for how long the response is replayed. Middleware on a subrouter runs
// before chi resolves the route pattern, so matching works on the raw path.
func replayTTL(method, path string) (time.Duration, bool) {
	segments := splitPath(path)
	for _, rt := range idempotentRoutes {
		if rt.matches(method, segments) {
			return rt.ttl, true
		}
	}
	return 0, false
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

type replayRecord struct {
	State       string `json:"state"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
}

// Idempotency claims the (user, method, path, key) tuple before the handler
// runs. A duplicate that arrives while the first call is still executing gets
// a conflict; one that arrives afterwards gets the stored response. Server
// errors release the claim so the client can retry with the same key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayTTL(r.Method, r.URL.Path)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := fingerprint(body)
			key := store.IdempotencyKey(strings.Join([]string{UserIDFromContext(ctx), r.Method, r.URL.Path}, "|"), clientKey)

			claim, _ := json.Marshal(replayRecord{State: recordPending, RequestHash: hash})
			claimed, err := store.SetNX(ctx, key, string(claim), inflightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayExisting(ctx, store, logg, w, key, hash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusOrOK()
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logFailure(ctx, logg, "release idempotency key", err)
				}
				return
			}
			done, _ := json.Marshal(replayRecord{
				State:       recordDone,
				RequestHash: hash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
			})
			if err := store.Set(ctx, key, string(done), ttl); err != nil {
				logFailure(ctx, logg, "store idempotent response", err)
			}
		})
	}
}

func replayExisting(ctx context.Context, store pkgredis.IdempotencyStore, logg *logger.Logger, w http.ResponseWriter, key, hash string) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// the claim expired between SetNX and Get
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotent request expired, retry"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}
	var record replayRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.State != recordDone:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(record.Status)
		if body, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
			_, _ = w.Write(body)
		}
	}
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawStdEncoding.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusOrOK() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logFailure(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
}
