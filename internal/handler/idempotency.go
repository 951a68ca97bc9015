package handler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader carries the client-chosen key for a retryable request.
	IdempotencyKeyHeader = "Idempotency-Key"

	idempotencyKeyPrefix     = "idempotency:"
	defaultIdempotencyTTL    = 24 * time.Hour
	idempotencyProcessingTTL = 60 * time.Second
)

type idempotencyStatus string

const (
	statusProcessing idempotencyStatus = "processing"
	statusCompleted  idempotencyStatus = "completed"
)

type idempotencyRecord struct {
	Status       idempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code"`
	ResponseBody string            `json:"response_body"`
	CreatedAt    time.Time         `json:"created_at"`
}

// RedisClient is the subset of go-redis the idempotency middleware uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Idempotency replays the stored response of a POST or PUT that carries an
// Idempotency-Key the same actor already used. Requests without the header pass
// through. Redis errors fail open.
//
// A key is held in "processing" state with a short TTL while the first request
// runs; completed responses are kept for ttl. Server errors release the key so
// the client can retry.
func Idempotency(client RedisClient, ttl time.Duration, log *zap.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if client == nil || key == "" || (r.Method != http.MethodPost && r.Method != http.MethodPut) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			actor := ActorFromContext(r.Context())
			redisKey := idempotencyKeyPrefix + actor.ID + ":" + key
			hash := requestHash(r, body)
			ctx := r.Context()

			existing, err := getRecord(ctx, client, redisKey)
			if err != nil && !errors.Is(err, redis.Nil) {
				log.Warn("idempotency lookup failed; continuing without it", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if existing != nil {
				replay(w, existing, hash)
				return
			}

			rec := &idempotencyRecord{Status: statusProcessing, RequestHash: hash, CreatedAt: time.Now()}
			claimed, err := setRecordNX(ctx, client, redisKey, rec, idempotencyProcessingTTL)
			if err != nil {
				log.Warn("idempotency claim failed; continuing without it", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				if existing, _ = getRecord(ctx, client, redisKey); existing != nil {
					replay(w, existing, hash)
					return
				}
			}

			rw := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			// Store the outcome even if the client hung up.
			saveCtx := context.WithoutCancel(ctx)
			if rw.status >= http.StatusInternalServerError {
				_ = client.Del(saveCtx, redisKey).Err()
				return
			}
			rec.Status = statusCompleted
			rec.ResponseCode = rw.status
			rec.ResponseBody = rw.body.String()
			if err := setRecord(saveCtx, client, redisKey, rec, ttl); err != nil {
				log.Warn("idempotency save failed", zap.Error(err))
			}
		})
	}
}

func replay(w http.ResponseWriter, rec *idempotencyRecord, hash string) {
	switch {
	case rec.RequestHash != hash:
		writeError(w, http.StatusUnprocessableEntity, codeIdempotencyReused, "idempotency key already used with a different request")
	case rec.Status == statusProcessing:
		writeError(w, http.StatusConflict, codeRequestInProgress, "a request with this idempotency key is already being processed")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.ResponseCode)
		_, _ = w.Write([]byte(rec.ResponseBody))
	}
}

func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte(r.URL.Path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func getRecord(ctx context.Context, client RedisClient, key string) (*idempotencyRecord, error) {
	raw, err := client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var rec idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func setRecordNX(ctx context.Context, client RedisClient, key string, rec *idempotencyRecord, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	return client.SetNX(ctx, key, string(data), ttl).Result()
}

func setRecord(ctx context.Context, client RedisClient, key string, rec *idempotencyRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, string(data), ttl).Err()
}

// capturingWriter keeps a copy of the response for the idempotency record.
type capturingWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *capturingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}
