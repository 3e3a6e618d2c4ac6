package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
	inFlightTTL       = 30 * time.Second
)

// inFlight marks a key whose first request has not finished yet.
var inFlight = []byte(`{"in_flight":true}`)

type cachedResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	InFlight    bool   `json:"in_flight,omitempty"`
}

// bodyRecorder tees the handler's output so it can be stored.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware answers a repeated POST carrying the same
// Idempotency-Key with the first response instead of running it again.
// Drivers on flaky connections retry claim and end-trip; a retry must not
// turn a won claim into a lost one or bill a trip twice.
//
// Keys are scoped to the caller and route. While the first request runs the
// key is reserved, and a concurrent duplicate gets 409. 5xx responses are not
// stored so the client can retry. A nil client disables the middleware.
func IdempotencyMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if redisClient == nil || key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyCacheKey(c, key)

		reserved, err := redisClient.SetNX(ctx, cacheKey, inFlight, inFlightTTL).Result()
		if err != nil {
			// Store unavailable: serve the request without replay protection.
			c.Next()
			return
		}

		if !reserved {
			cached, err := getCachedResponse(ctx, redisClient, cacheKey)
			switch {
			case err != nil && !errors.Is(err, redis.Nil):
				c.Next()
			case cached == nil || cached.InFlight:
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this Idempotency-Key is still in progress"})
			default:
				c.Header("Idempotent-Replayed", "true")
				c.Data(cached.StatusCode, cached.ContentType, cached.Body)
				c.Abort()
			}
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status >= http.StatusInternalServerError {
			_ = redisClient.Del(context.WithoutCancel(ctx), cacheKey).Err()
			return
		}
		_ = setCachedResponse(context.WithoutCancel(ctx), redisClient, cacheKey, &cachedResponse{
			StatusCode:  status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
	}
}

func idempotencyCacheKey(c *gin.Context, key string) string {
	actorID := "anonymous"
	if actor, ok := ActorFromContext(c); ok {
		actorID = actor.ID
	}
	return "idempotency:" + actorID + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
}

func getCachedResponse(ctx context.Context, client *redis.Client, key string) (*cachedResponse, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func setCachedResponse(ctx context.Context, client *redis.Client, key string, response *cachedResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, data, idempotencyTTL).Err()
}
