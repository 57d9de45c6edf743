package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/pkg/apperror"
	"flowkora/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// Header names for webhook HMAC authentication
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
	HeaderWebhookNonce     = "X-Webhook-Nonce"
	HeaderWebhookSignature = "X-Webhook-Signature"

	// Defaults used when WebhookAuthConfig leaves them zero
	defaultMaxTimestampDrift = 60 * time.Second
	defaultNonceTTL          = 120 * time.Second

	webhookNonceScope = "webhook"

	// Context keys
	CtxRequestID       = "request_id"
	CtxMerchantID      = "merchant_id"
	CtxPrincipal       = "principal"
	CtxAuditResourceID = "audit_resource_id"
)

var requestIDRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{1,64}$`)

// RequestID propagates a caller-supplied X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(response.RequestIDHeader)
		if !requestIDRe.MatchString(id) {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header(response.RequestIDHeader, id)
		c.Next()
	}
}

// Timeout bounds every request with a deadline. Handlers that run past it
// without writing a response get SYS_003.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			response.Error(c, apperror.ErrRequestTimeout())
		}
	}
}

// SessionAuth admits requests carrying a valid identity-provider session,
// read from the session cookie or a non-API-key bearer token.
func SessionAuth(identity ports.IdentityService, cookieName string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, cookieName)
		if token == "" {
			response.Error(c, apperror.ErrUnauthorized())
			return
		}
		principal, err := identity.AuthenticateSession(c.Request.Context(), token)
		if err != nil {
			logAuthFailure(log, c, err)
			response.Error(c, err)
			return
		}
		setPrincipal(c, principal)
		c.Next()
	}
}

// SessionOrAPIKeyAuth admits either a merchant API key (Bearer fk_live_…)
// or a session. It guards the integration routes.
func SessionOrAPIKeyAuth(identity ports.IdentityService, cookieName string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key, ok := bearerToken(c); ok && strings.HasPrefix(key, domain.APIKeyPrefix) {
			principal, err := identity.AuthenticateAPIKey(c.Request.Context(), key)
			if err != nil {
				logAuthFailure(log, c, err)
				response.Error(c, err)
				return
			}
			setPrincipal(c, principal)
			c.Next()
			return
		}

		token := sessionToken(c, cookieName)
		if token == "" {
			response.Error(c, apperror.ErrUnauthorized())
			return
		}
		principal, err := identity.AuthenticateSession(c.Request.Context(), token)
		if err != nil {
			logAuthFailure(log, c, err)
			response.Error(c, err)
			return
		}
		setPrincipal(c, principal)
		c.Next()
	}
}

// MerchantID returns the authenticated merchant id set by the auth middleware.
func MerchantID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(CtxMerchantID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Principal returns the authenticated principal, if any.
func Principal(c *gin.Context) (*domain.Principal, bool) {
	v, exists := c.Get(CtxPrincipal)
	if !exists {
		return nil, false
	}
	p, ok := v.(*domain.Principal)
	return p, ok
}

func setPrincipal(c *gin.Context, p *domain.Principal) {
	c.Set(CtxPrincipal, p)
	c.Set(CtxMerchantID, p.MerchantID)
}

// sessionToken prefers the cookie. A bearer API key is never a session.
func sessionToken(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "" {
			return v
		}
	}
	if tok, ok := bearerToken(c); ok && !strings.HasPrefix(tok, domain.APIKeyPrefix) {
		return tok
	}
	return ""
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) < 8 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(authHeader[7:])
	return tok, tok != ""
}

func logAuthFailure(log zerolog.Logger, c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		log.Debug().Str("path", c.Request.URL.Path).Str("error_code", appErr.Code).Msg("authentication rejected")
		return
	}
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("authentication failed")
}

// WebhookAuthConfig configures the payment-status webhook verifier.
type WebhookAuthConfig struct {
	Secret   string
	MaxDrift time.Duration
	NonceTTL time.Duration
}

// WebhookAuth creates a middleware that verifies HMAC-SHA256 signatures on
// the payment-status webhook.
// Pipeline: Check timestamp -> Verify signature -> Consume nonce.
func WebhookAuth(
	cfg WebhookAuthConfig,
	sigSvc ports.SignatureService,
	nonceStore ports.NonceStore,
	log zerolog.Logger,
) gin.HandlerFunc {
	if cfg.MaxDrift <= 0 {
		cfg.MaxDrift = defaultMaxTimestampDrift
	}
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = defaultNonceTTL
	}

	return func(c *gin.Context) {
		signature := c.GetHeader(HeaderWebhookSignature)
		timestampStr := c.GetHeader(HeaderWebhookTimestamp)
		nonce := c.GetHeader(HeaderWebhookNonce)

		if signature == "" || timestampStr == "" || nonce == "" {
			response.Error(c, apperror.ErrInvalidSignature())
			return
		}

		// Step 1: Timestamp check
		timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
		if err != nil {
			response.Error(c, apperror.ErrTimestampExpired())
			return
		}
		now := time.Now().Unix()
		if math.Abs(float64(now-timestamp)) > cfg.MaxDrift.Seconds() {
			response.Error(c, apperror.ErrTimestampExpired())
			return
		}

		// Step 2: Signature verification
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		canonical := sigSvc.BuildCanonicalString(
			c.Request.Method,
			c.Request.URL.Path,
			timestamp,
			nonce,
			string(bodyBytes),
		)
		if !sigSvc.Verify(cfg.Secret, canonical, signature) {
			log.Warn().Str("client_ip", c.ClientIP()).Msg("webhook signature mismatch")
			response.Error(c, apperror.ErrInvalidSignature())
			return
		}

		// Step 3: Nonce is single-use. Only signed requests may consume one.
		isNew, err := nonceStore.CheckAndSet(c.Request.Context(), webhookNonceScope, nonce, cfg.NonceTTL)
		if err != nil {
			log.Error().Err(err).Msg("nonce store error, rejecting webhook")
			response.Error(c, apperror.InternalError(err))
			return
		}
		if !isNew {
			response.Error(c, apperror.ErrNonceUsed())
			return
		}

		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", response.RequestID(c)).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("path", c.Request.URL.Path).
					Str("request_id", response.RequestID(c)).
					Msg("panic recovered")
				response.Error(c, apperror.InternalError(errors.New("panic recovered")))
			}
		}()
		c.Next()
	}
}

// DefaultMaxBodyBytes caps JSON request bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

// MaxBodySize limits the request body size. Reads past the limit fail and
// the handler rejects the request.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
