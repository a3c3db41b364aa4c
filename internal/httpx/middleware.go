package httpx

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ownerCookie = "cart_token"

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("rid", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		rid, _ := c.Get("rid")
		log.Printf("[http] rid=%v %s %s status=%d dur=%s",
			rid, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// Owner resolves the cart owner once per request: an authenticated user id
// from X-User-ID, otherwise an anonymous cart token carried in a cookie.
// Downstream handlers only ever see the single opaque owner id.
func Owner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.GetHeader("X-User-ID")
		if owner == "" {
			if tok, err := c.Cookie(ownerCookie); err == nil && tok != "" {
				owner = tok
			} else {
				owner = "anon-" + uuid.NewString()
				c.SetCookie(ownerCookie, owner, int((30 * 24 * time.Hour).Seconds()), "/", "", false, true)
			}
		}
		c.Set("owner", owner)
		c.Next()
	}
}

// OwnerID returns the owner id resolved by Owner, aborting with 401 if absent.
func OwnerID(c *gin.Context) (string, bool) {
	owner := c.GetString("owner")
	if owner == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "owner not resolved"})
		return "", false
	}
	return owner, true
}
