package httpgin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// etagOf returns a weak validator for a JSON body. Auction views change with
// every bid, so byte equality of the encoding is all it promises.
func etagOf(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:16]) + `"`
}

// notModified reports whether an If-None-Match header matches tag. Weak
// comparison is used, so W/ prefixes on either side are ignored.
func notModified(ifNoneMatch, tag string) bool {
	if ifNoneMatch == "" {
		return false
	}

	want := strings.TrimPrefix(tag, "W/")
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}

	return false
}

// writeJSONWithCache writes v with an ETag and Cache-Control, or 304 when the
// client already holds the same representation.
func writeJSONWithCache(c *gin.Context, status int, v any, cacheControl string) {
	body, err := json.Marshal(v)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	tag := etagOf(body)
	c.Header("ETag", tag)
	if cacheControl != "" {
		c.Header("Cache-Control", cacheControl)
	}

	if notModified(c.GetHeader("If-None-Match"), tag) {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(status, "application/json; charset=utf-8", body)
}
