// Package api serves the guess store over HTTP.
package api

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"raffle-guess/internal/logger"
	"raffle-guess/internal/models"
)

// GuessStore is the repository behind the routes.
type GuessStore interface {
	Record(ctx context.Context, rec *models.GuessRecord) (bool, error)
	ListByFID(ctx context.Context, fid int64) ([]models.GuessRecord, error)
}

// PrizePoolReader reads the raffle's prize pool.
type PrizePoolReader interface {
	PrizePool(ctx context.Context, raffleNumber *big.Int) (*big.Int, error)
}

type Options struct {
	CORSOrigins []string // empty allows any origin
	RateLimit   float64  // requests per second per client; <= 0 disables
	RateBurst   int
	Prize       PrizePoolReader // optional
	Log         *logger.Logger
}

// NewRouter builds the gin engine for the store API.
func NewRouter(store GuessStore, opts Options) *gin.Engine {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(opts.Log))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(opts.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = opts.CORSOrigins
	}
	r.Use(cors.New(corsCfg))

	if opts.RateLimit > 0 {
		r.Use(newRateLimiter(opts.RateLimit, opts.RateBurst).middleware())
	}

	h := guesses{store: store, log: opts.Log}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/guesses", h.Create)
	r.GET("/guesses", h.List)

	if opts.Prize != nil {
		p := prize{reader: opts.Prize, log: opts.Log}
		r.GET("/raffles/:number/prize-pool", p.Get)
	}
	return r
}

func requestLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start).String(),
		)
	}
}
