package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SCPrime/ai-Trader-sub001/internal/auth"
	"github.com/SCPrime/ai-Trader-sub001/internal/risk"
	"github.com/SCPrime/ai-Trader-sub001/internal/supervisor"
)

// handleHealth reports component availability without requiring auth
func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":    "ok",
		"uptime_s":  int(time.Since(s.startedAt).Seconds()),
		"timestamp": time.Now(),
		"components": gin.H{
			"database": s.repo != nil,
			"redis":    s.store != nil && s.store.Available(),
			"news":     s.newsFeed != nil,
			"auth":     s.authEnabled,
		},
	}
	c.JSON(http.StatusOK, health)
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.authEnabled {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "authentication disabled"})
		return
	}

	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operator_id and password required"})
		return
	}

	resp, err := s.authService.Login(req)
	if err != nil {
		authErr, ok := err.(auth.AuthError)
		if !ok {
			authErr = auth.ErrInvalidCredentials
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Code, "message": authErr.Message})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"mode":        s.supervisor.Mode(),
		"supervisor":  s.supervisor.Stats(),
		"risk":        s.riskMgr.Metrics(),
		"breaker":     s.riskMgr.Breaker().Stats(),
		"ws_clients":  s.hub.ClientCount(),
		"uptime_s":    int(time.Since(s.startedAt).Seconds()),
	}
	if s.paper != nil {
		status["portfolio"] = s.paper.Snapshot()
	}
	if s.dispatcher != nil {
		status["notifications"] = s.dispatcher.Stats()
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleListPending(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pending": s.supervisor.Pending(),
		"mode":    s.supervisor.Mode(),
	})
}

func (s *Server) handleGetPending(c *gin.Context) {
	trade, err := s.supervisor.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pending trade not found"})
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) handleApprove(c *gin.Context) {
	operator := auth.GetOperatorID(c)
	if operator == "" {
		operator = "local"
	}

	trade, err := s.supervisor.Approve(c.Request.Context(), c.Param("id"), operator)
	if err != nil {
		s.writeDecisionError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) handleReject(c *gin.Context) {
	operator := auth.GetOperatorID(c)
	if operator == "" {
		operator = "local"
	}

	var body struct {
		Reason string `json:"reason"`
	}
	c.ShouldBindJSON(&body)
	if body.Reason == "" {
		body.Reason = "rejected by operator"
	}

	trade, err := s.supervisor.Reject(c.Request.Context(), c.Param("id"), operator, body.Reason)
	if err != nil {
		s.writeDecisionError(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (s *Server) writeDecisionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, supervisor.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "pending trade not found"})
	case errors.Is(err, supervisor.ErrAlreadyDecided):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleGetMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mode": s.supervisor.Mode()})
}

func (s *Server) handleSetMode(c *gin.Context) {
	var body struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode required"})
		return
	}

	mode, err := supervisor.ParseMode(body.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	operator := auth.GetOperatorID(c)
	if operator == "" {
		operator = "local"
	}

	s.supervisor.SetMode(mode, operator)
	c.JSON(http.StatusOK, gin.H{"mode": mode})
}

// proposeRequest is the trade proposal payload
type proposeRequest struct {
	Symbol            string     `json:"symbol" binding:"required"`
	Side              string     `json:"side" binding:"required"`
	AssetType         string     `json:"asset_type"`
	LimitPrice        float64    `json:"limit_price"`
	Strategy          string     `json:"strategy"`
	CollateralPerUnit float64    `json:"collateral_per_unit"`
	Legs              []risk.Leg `json:"legs"`
}

func (s *Server) handlePropose(c *gin.Context) {
	var req proposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and side required"})
		return
	}

	assetType := risk.AssetStock
	if req.AssetType != "" {
		switch risk.AssetType(req.AssetType) {
		case risk.AssetStock, risk.AssetOption:
			assetType = risk.AssetType(req.AssetType)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "asset_type must be stock or option"})
			return
		}
	}

	intent := risk.TradeIntent{
		Symbol:            req.Symbol,
		Side:              req.Side,
		AssetType:         assetType,
		LimitPrice:        req.LimitPrice,
		Strategy:          req.Strategy,
		CollateralPerUnit: req.CollateralPerUnit,
		Legs:              req.Legs,
	}

	decision, err := s.supervisor.Propose(c.Request.Context(), intent)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if decision.Status == supervisor.StatusPending {
		status = http.StatusAccepted
	}
	c.JSON(status, decision)
}

func (s *Server) handleRiskStatus(c *gin.Context) {
	breaker := s.riskMgr.Breaker()
	canTrade, reason := breaker.CanTrade()

	c.JSON(http.StatusOK, gin.H{
		"can_trade": canTrade,
		"reason":    reason,
		"breaker":   breaker.Stats(),
	})
}

func (s *Server) handleRiskMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.riskMgr.Metrics())
}

func (s *Server) handleBreakerReset(c *gin.Context) {
	s.riskMgr.Breaker().ForceReset()
	c.JSON(http.StatusOK, gin.H{"breaker": s.riskMgr.Breaker().Stats()})
}

func (s *Server) handlePortfolio(c *gin.Context) {
	if s.paper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paper trading disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":   s.paper.Account(),
		"positions": s.paper.Positions(),
		"snapshot":  s.paper.Snapshot(),
	})
}

func (s *Server) handleNewsStories(c *gin.Context) {
	if s.newsFeed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "news feed disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stories": s.newsFeed.Stories()})
}

func (s *Server) handleNewsStats(c *gin.Context) {
	if s.newsFeed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "news feed disabled"})
		return
	}
	c.JSON(http.StatusOK, s.newsFeed.Stats())
}

func (s *Server) handleNotifyStats(c *gin.Context) {
	if s.dispatcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications disabled"})
		return
	}
	c.JSON(http.StatusOK, s.dispatcher.Stats())
}

func (s *Server) handleListDecisions(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit database disabled"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	records, err := s.repo.ListDecisions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": records, "count": len(records)})
}
