package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainerrors "oft-bridge.backend/internal/domain/errors"
	"oft-bridge.backend/internal/interfaces/http/response"
	"oft-bridge.backend/pkg/logger"
	"oft-bridge.backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// LockDuration bounds how long a request may hold the key unanswered.
	LockDuration = 2 * time.Minute
	// RetentionDuration is how long a finished response is replayed.
	RetentionDuration = 24 * time.Hour

	stateProcessing = "processing"
	stateDone       = "done"
	maxBodyBytes    = 1 << 20
)

var (
	redisGet   = redis.Get
	redisSet   = redis.Set
	redisSetNX = redis.SetNX
	redisDel   = redis.Del
	redisIsNil = redis.IsNil
)

// idempotencyRecord is what is stored under an idempotency key.
type idempotencyRecord struct {
	State       string          `json:"state"`
	Fingerprint string          `json:"fingerprint"`
	Status      int             `json:"status,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key. The key is bound to the request body: reusing it with a
// different body is a conflict. Only 2xx answers are stored; anything else
// releases the key so the caller can retry.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			response.Error(c, domainerrors.BadRequest("request body unreadable"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		sum := sha256.Sum256(raw)
		fingerprint := hex.EncodeToString(sum[:])
		storageKey := "idempotency:" + c.Request.Method + ":" + c.FullPath() + ":" + key

		val, err := redisGet(ctx, storageKey)
		switch {
		case err == nil:
			replay(c, val, fingerprint)
			return
		case !redisIsNil(err):
			logger.Warn(ctx, "idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}

		lock, _ := json.Marshal(idempotencyRecord{State: stateProcessing, Fingerprint: fingerprint})
		acquired, err := redisSetNX(ctx, storageKey, string(lock), LockDuration)
		if err != nil || !acquired {
			response.Error(c, domainerrors.Conflict("request with this Idempotency-Key is in progress"))
			return
		}

		w := &responseWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status > 299 {
			_ = redisDel(ctx, storageKey)
			return
		}
		done, err := json.Marshal(idempotencyRecord{
			State:       stateDone,
			Fingerprint: fingerprint,
			Status:      status,
			Body:        json.RawMessage(w.body.Bytes()),
		})
		if err != nil {
			_ = redisDel(ctx, storageKey)
			return
		}
		if err := redisSet(ctx, storageKey, string(done), RetentionDuration); err != nil {
			logger.Warn(ctx, "failed to store idempotent response", zap.Error(err))
		}
	}
}

func replay(c *gin.Context, stored, fingerprint string) {
	var rec idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &rec); err != nil {
		response.Error(c, domainerrors.Conflict("Idempotency-Key holds an unreadable record"))
		return
	}
	if rec.Fingerprint != fingerprint {
		response.Error(c, domainerrors.Conflict("Idempotency-Key was used with a different request"))
		return
	}
	if rec.State == stateProcessing {
		response.Error(c, domainerrors.Conflict("request with this Idempotency-Key is in progress"))
		return
	}
	status := rec.Status
	if status == 0 {
		status = http.StatusOK
	}
	c.Header("X-Idempotency-Hit", "true")
	c.Data(status, "application/json; charset=utf-8", rec.Body)
	c.Abort()
}
