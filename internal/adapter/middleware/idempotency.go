package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderRequestAt      = "Idempotency-Request-At"
	HeaderReplayed       = "Idempotent-Replayed"

	// a claim outlives any sane handler; a crashed instance frees the key after this
	claimTTL     = 60 * time.Second
	maxClockSkew = 10 * time.Minute
	storeTimeout = 2 * time.Second

	// MaxBodyBytes caps what the middleware buffers to hash a request.
	MaxBodyBytes = 1 << 20
)

type idemError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// capture tees the response so it can be stored after the handler returns.
type capture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *capture) WriteHeader(code int) { c.status = code; c.ResponseWriter.WriteHeader(code) }

func (c *capture) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *capture) Unwrap() http.ResponseWriter { return c.ResponseWriter }

// IdempotencyMiddleware replays the stored response when a write is retried
// with the same Idempotency-Key. Entries are scoped to method, route and
// caller, so two users may pick the same key. Requests without the header
// pass through. 5xx responses are not stored and the key is freed for a retry.
func IdempotencyMiddleware(rdb *redis.Client, ttl time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	store := replayStore{rdb: rdb, lockTTL: claimTTL, ttl: ttl}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			idemKey := strings.ToLower(strings.TrimSpace(req.Header.Get(HeaderIdempotencyKey)))
			if idemKey == "" {
				return next(c)
			}
			if !validIdemKey(idemKey) {
				return c.JSON(http.StatusBadRequest, idemError{"invalid " + HeaderIdempotencyKey + " format", "invalid_idempotency_key"})
			}
			var requestAtMS int64
			if raw := req.Header.Get(HeaderRequestAt); raw != "" {
				at, err := parseRequestAt(raw)
				if err != nil {
					return c.JSON(http.StatusBadRequest, idemError{err.Error(), "invalid_request_at"})
				}
				if skew := time.Since(at); skew > maxClockSkew || skew < -maxClockSkew {
					return c.JSON(http.StatusBadRequest, idemError{HeaderRequestAt + " too skewed", "invalid_request_at"})
				}
				requestAtMS = at.UnixMilli()
			}

			actorID := "anonymous"
			if a, ok := ActorFrom(req.Context()); ok {
				actorID = a.UserID
			}

			var body []byte
			if req.Body != nil {
				var err error
				body, err = io.ReadAll(io.LimitReader(req.Body, MaxBodyBytes+1))
				if err != nil {
					return c.JSON(http.StatusBadRequest, idemError{"unreadable request body", "invalid_body"})
				}
				if len(body) > MaxBodyBytes {
					return c.JSON(http.StatusRequestEntityTooLarge, idemError{"request body too large", "body_too_large"})
				}
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			hash := sha256Hex(body)

			key := replayKey(req.Method, c.Path(), actorID, idemKey)
			log := log.With(zap.String("idempotency_key", key))
			ctx, cancel := context.WithTimeout(req.Context(), storeTimeout)
			defer cancel()

			claimed, err := store.claim(ctx, key, replayEntry{
				Pending:     true,
				BodyHash:    hash,
				RequestAtMS: requestAtMS,
				CreatedAt:   time.Now().UTC(),
			})
			if err != nil {
				log.Error("idempotency: store unavailable", zap.Error(err))
				return c.JSON(http.StatusServiceUnavailable, idemError{"idempotency store unavailable", "idempotency_unavailable"})
			}
			if !claimed {
				prev, err := store.get(ctx, key)
				if err != nil {
					log.Warn("idempotency: load entry failed", zap.Error(err))
				}
				switch {
				case prev.BodyHash != "" && prev.BodyHash != hash:
					return c.JSON(http.StatusConflict, idemError{HeaderIdempotencyKey + " reused with different body", "idempotency_key_reused"})
				case !prev.Pending && prev.Status != 0:
					ct := prev.ContentType
					if ct == "" {
						ct = echo.MIMEApplicationJSON
					}
					c.Response().Header().Set(HeaderReplayed, "true")
					return c.Blob(prev.Status, ct, prev.Body)
				default:
					return c.JSON(http.StatusConflict, idemError{"request is already in progress", "request_in_progress"})
				}
			}

			tee := &capture{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = tee
			if err := next(c); err != nil {
				c.Error(err)
			}

			// the client may be gone; the claim still has to be resolved
			bg, cancelBg := context.WithTimeout(context.WithoutCancel(req.Context()), storeTimeout)
			defer cancelBg()
			if tee.status >= http.StatusInternalServerError {
				if err := store.drop(bg, key); err != nil {
					log.Warn("idempotency: release failed", zap.Error(err))
				}
				return nil
			}
			if err := store.settle(bg, key, replayEntry{
				Status:      tee.status,
				ContentType: tee.Header().Get(echo.HeaderContentType),
				Body:        tee.body.Bytes(),
				BodyHash:    hash,
				RequestAtMS: requestAtMS,
				CreatedAt:   time.Now().UTC(),
			}); err != nil {
				log.Warn("idempotency: save failed", zap.Error(err))
			}
			return nil
		}
	}
}
