package routes

import (
	"net/http"
	"regexp"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	limiterGin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

func SecureMiddleware() gin.HandlerFunc {
	return secure.New(secure.Config{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'self';",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	})
}

// CORSMiddleware reflects origins matching allowedOriginExp.
func CORSMiddleware(allowedOriginExp string, log *zap.SugaredLogger) gin.HandlerFunc {
	re, err := regexp.Compile(allowedOriginExp)
	if err != nil {
		log.Errorw("invalid cors origin pattern, blocking cross-origin requests", "pattern", allowedOriginExp, "err", err)
		re = regexp.MustCompile(`^$`)
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && re.MatchString(origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else if origin != "" {
			log.Warnw("cors request blocked", "origin", origin, "method", c.Request.Method)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-System-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// TmpCORSMiddleware allows every origin.
func TmpCORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	})
}

// RateLimiterMiddleware throttles per client IP. limit uses the limiter
// format, e.g. "100-S".
func RateLimiterMiddleware(limit string) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(limit)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(memory.NewStore(), rate)
	return limiterGin.NewMiddleware(instance), nil
}

// SystemKeyMiddleware validates the system key from the X-System-Key header.
func SystemKeyMiddleware(systemKey string, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-System-Key")
		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "System key required"})
			return
		}
		if systemKey == "" || providedKey != systemKey {
			log.Warnf("Invalid system key attempt from IP: %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid system key"})
			return
		}
		c.Next()
	}
}
