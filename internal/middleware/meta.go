package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/advising-api/pkg/middleware/requestid"
)

const (
	responseMetaKey  = "response_meta"
	requestStartKey  = "request_started_at"
	processingTimeMS = "processing_time_ms"
)

// WithResponseMeta starts the per-request meta map that handlers add to before responding.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetMeta records a response metadata entry for the current request.
func SetMeta(c *gin.Context, key string, value interface{}) {
	meta := metaMap(c)
	if meta == nil {
		meta = map[string]interface{}{}
		c.Set(responseMetaKey, meta)
	}
	meta[key] = value
}

// ExtractMeta returns the entries set so far plus the request id and elapsed time.
// It returns nil when nothing was recorded and WithResponseMeta is not installed.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta := metaMap(c)
	started, hasStart := c.Get(requestStartKey)
	if meta == nil && !hasStart {
		return nil
	}
	out := make(map[string]interface{}, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	if at, ok := started.(time.Time); ok {
		out[processingTimeMS] = time.Since(at).Milliseconds()
	}
	if id := requestid.Value(c); id != "" {
		out["request_id"] = id
	}
	return out
}

func metaMap(c *gin.Context) map[string]interface{} {
	if value, exists := c.Get(responseMetaKey); exists {
		if typed, ok := value.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}
