package api

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"raffle-guess/internal/logger"
	"raffle-guess/internal/models"
)

type guesses struct {
	store GuessStore
	log   *logger.Logger
}

// POST /guesses
func (h guesses) Create(c *gin.Context) {
	var req struct {
		Timestamp    int64  `json:"timestamp"     binding:"required"`
		UserAddress  string `json:"user_address"  binding:"required"`
		FID          int64  `json:"fid"           binding:"required"`
		ReadableTime string `json:"readable_time" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	if strings.TrimSpace(req.UserAddress) == "" || strings.TrimSpace(req.ReadableTime) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	rec := models.GuessRecord{
		Timestamp:    req.Timestamp,
		UserAddress:  strings.TrimSpace(req.UserAddress),
		FID:          req.FID,
		ReadableTime: req.ReadableTime,
		CreatedAt:    time.Now().UTC(),
	}
	created, err := h.store.Record(c.Request.Context(), &rec)
	if err != nil {
		h.log.Error("record guess", "user_address", rec.UserAddress, "timestamp", rec.Timestamp, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !created {
		h.log.Info("duplicate guess", "user_address", rec.UserAddress, "timestamp", rec.Timestamp)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": []models.GuessRecord{rec}})
}

// GET /guesses?fid=
func (h guesses) List(c *gin.Context) {
	raw := c.Query("fid")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "FID is required"})
		return
	}
	fid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "FID must be an integer"})
		return
	}
	list, err := h.store.ListByFID(c.Request.Context(), fid)
	if err != nil {
		h.log.Error("list guesses", "fid", fid, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []models.GuessRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"guesses": list})
}

type prize struct {
	reader PrizePoolReader
	log    *logger.Logger
}

// GET /raffles/:number/prize-pool
func (p prize) Get(c *gin.Context) {
	n, ok := new(big.Int).SetString(c.Param("number"), 10)
	if !ok || n.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid raffle number"})
		return
	}
	pool, err := p.reader.PrizePool(c.Request.Context(), n)
	if err != nil {
		p.log.Error("prize pool", "raffle", n.String(), "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "prize pool unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"raffle_number": n.String(), "prize_pool": pool.String()})
}
