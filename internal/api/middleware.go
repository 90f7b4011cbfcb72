package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/XavTo/Blockchain/internal/metrics"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

const (
	loggerKey    = "logger"
	requestIDKey = "request_id"
	accountIDKey = "account_id"
)

// requestID keeps a caller supplied id or assigns a new one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// accessLog logs each request and records its metrics. It also places a
// request scoped logger in the context for handlers.
func accessLog(base *zap.Logger, m *metrics.Collectors) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger := base.With(zap.String("request_id", c.GetString(requestIDKey)))
		c.Set(loggerKey, logger)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		m.ObserveHTTP(route, c.Request.Method, status, elapsed)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("client_ip", c.ClientIP()),
		}
		if id, ok := c.Get(accountIDKey); ok {
			fields = append(fields, zap.Any("account_id", id))
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

// recovery turns a panic into a 500 without killing the server
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestLogger(c).Error("panic in handler",
					zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					ErrorResponse{Error: "internal error", Code: CodeInternal})
			}
		}()
		c.Next()
	}
}

// deadline bounds every request. Ledger waits observe it through the
// request context.
func deadline(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// clientLimiter rate limits requests per client address
type clientLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
}

func newClientLimiter(perSecond float64, burst, clients int) (*clientLimiter, error) {
	cache, err := lru.New[string, *rate.Limiter](clients)
	if err != nil {
		return nil, err
	}
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{limit: rate.Limit(perSecond), burst: burst, limiters: cache}, nil
}

func (l *clientLimiter) get(key string) *rate.Limiter {
	if lim, ok := l.limiters.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	// a concurrent first request for the same client may win; either limiter is fine
	if prev, ok, _ := l.limiters.PeekOrAdd(key, lim); ok {
		return prev
	}
	return lim
}

func (l *clientLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			fail(c, errRateLimited)
			return
		}
		c.Next()
	}
}

// authenticator validates bearer tokens and resolves the account id
type authenticator struct {
	secret []byte
	issuer string
}

// Claims are the token claims the service reads. The account is the numeric
// subject, or the user_id claim when the subject is not numeric.
type Claims struct {
	UserID int64 `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// AccountID returns the account the token was issued for
func (c *Claims) AccountID() (int64, error) {
	if c.Subject != "" {
		if id, err := strconv.ParseInt(c.Subject, 10, 64); err == nil && id > 0 {
			return id, nil
		}
	}
	if c.UserID > 0 {
		return c.UserID, nil
	}
	return 0, errors.New("token carries no account id")
}

func (a *authenticator) parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (a *authenticator) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			fail(c, errors.Wrap(errUnauthorized, "missing bearer token"))
			return
		}

		claims, err := a.parse(strings.TrimSpace(raw))
		if err != nil {
			fail(c, errors.Wrap(errUnauthorized, err.Error()))
			return
		}
		id, err := claims.AccountID()
		if err != nil {
			fail(c, errors.Wrap(errUnauthorized, err.Error()))
			return
		}

		c.Set(accountIDKey, id)
		c.Next()
	}
}

// IssueToken signs an HS256 token for accountID. It serves operators and
// tests; production tokens come from the account service.
func IssueToken(secret, issuer string, accountID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(accountID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func requestLogger(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}

func accountID(c *gin.Context) int64 {
	return c.GetInt64(accountIDKey)
}
