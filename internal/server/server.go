package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/perpdash/perpdash/internal/domain"
	"github.com/perpdash/perpdash/internal/journal"
	"github.com/perpdash/perpdash/internal/session"
	"github.com/perpdash/perpdash/internal/wallet"
)

var log = logrus.WithField("component", "http_server")

// Server 把会话存储暴露为本地 HTTP API，给浏览器面板用
type Server struct {
	store   *session.Store
	journal *journal.Journal // 可选
	wallet  wallet.Capability
}

// New 创建 HTTP 服务
func New(store *session.Store, j *journal.Journal, w wallet.Capability) *Server {
	return &Server{store: store, journal: j, wallet: w}
}

// Router 组装路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")

	sess := api.Group("/session")
	sess.POST("/init", s.handleSessionInit)
	sess.GET("", s.handleSessionGet)

	sub := api.Group("/subaccount")
	sub.GET("", s.handleSubAccountGet)
	sub.POST("/select", s.handleSubAccountSelect)
	sub.POST("/refresh", s.handleSubAccountRefresh)
	sub.POST("/init", s.handleSubAccountInit)

	market := api.Group("/market")
	market.GET("/:id", s.handleMarketGet)
	market.POST("/select", s.handleMarketSelect)
	market.POST("/refresh", s.handleMarketRefresh)

	api.POST("/deposit", s.handleDeposit)
	api.POST("/withdraw", s.handleWithdraw)
	api.POST("/orders", s.handlePlaceOrder)
	api.GET("/journal", s.handleJournal)

	return r
}

// fail 把会话层错误映射成 HTTP 状态码：
// 本地校验失败 400，没有会话 409，交易所侧失败 502
func fail(c *gin.Context, err error) {
	status := http.StatusBadGateway

	var invalid *session.InvalidOrderError
	switch {
	case errors.As(err, &invalid), errors.Is(err, session.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotInitialized):
		status = http.StatusConflict
	}

	if status == http.StatusBadGateway {
		log.Warnf("请求失败: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handleSessionInit(c *gin.Context) {
	if err := s.store.InitSession(c.Request.Context(), s.wallet); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleSessionGet(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleSubAccountGet(c *gin.Context) {
	snap := s.store.SubAccountSnapshot()
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{"subAccount": nil, "current": s.store.CurrentSubAccount()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subAccount": snap, "current": s.store.CurrentSubAccount()})
}

type selectRequest struct {
	ID int `json:"id"`
}

func (s *Server) handleSubAccountSelect(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID < 0 || req.ID > int(domain.MaxSubAccountID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sub-account id out of range"})
		return
	}
	if err := s.store.SetCurrentSubAccount(domain.SubAccountID(req.ID)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"current": s.store.CurrentSubAccount()})
}

func (s *Server) handleSubAccountRefresh(c *gin.Context) {
	if err := s.store.RefreshSubAccount(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subAccount": s.store.SubAccountSnapshot()})
}

type subAccountInitRequest struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

func (s *Server) handleSubAccountInit(c *gin.Context) {
	var req subAccountInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID < 0 || req.ID > int(domain.MaxSubAccountID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sub-account id out of range"})
		return
	}
	sig, err := s.store.InitializeSubAccount(c.Request.Context(), domain.SubAccountID(req.ID), req.Label)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txSignature": sig})
}

func (s *Server) handleMarketGet(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 16)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}
	snap := s.store.MarketSnapshot(domain.MarketID(id))
	c.JSON(http.StatusOK, gin.H{"market": snap, "current": s.store.CurrentMarket()})
}

func (s *Server) handleMarketSelect(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID < 0 || req.ID > 0xFFFF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "market id out of range"})
		return
	}
	s.store.SetCurrentMarket(domain.MarketID(req.ID))
	c.JSON(http.StatusOK, gin.H{"current": s.store.CurrentMarket()})
}

func (s *Server) handleMarketRefresh(c *gin.Context) {
	if err := s.store.RefreshMarket(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"market": s.store.MarketSnapshot(s.store.CurrentMarket())})
}

type amountRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) handleDeposit(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sig, err := s.store.Deposit(c.Request.Context(), req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txSignature": sig})
}

func (s *Server) handleWithdraw(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sig, err := s.store.Withdraw(c.Request.Context(), req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txSignature": sig})
}

// orderRequest 下单请求体，字段含义随 kind 变化
type orderRequest struct {
	Kind      string  `json:"kind"`
	MarketID  int     `json:"marketId"`
	Direction string  `json:"direction"`
	Size      float64 `json:"size"`

	LimitPrice float64 `json:"limitPrice,omitempty"`

	AuctionStartPrice    float64 `json:"auctionStartPrice,omitempty"`
	AuctionEndPrice      float64 `json:"auctionEndPrice,omitempty"`
	AuctionFinalPrice    float64 `json:"auctionFinalPrice,omitempty"`
	AuctionDurationSlots int     `json:"auctionDurationSlots,omitempty"`
	TTLSeconds           int     `json:"ttlSeconds,omitempty"`

	OracleOffset float64 `json:"oracleOffset,omitempty"`
}

func (s *Server) handlePlaceOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MarketID < 0 || req.MarketID > 0xFFFF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "market id out of range"})
		return
	}

	intent := domain.OrderIntent{
		Kind:                 domain.OrderKind(req.Kind),
		MarketID:             domain.MarketID(req.MarketID),
		Direction:            domain.Direction(req.Direction),
		HumanSize:            req.Size,
		LimitPrice:           req.LimitPrice,
		AuctionStartPrice:    req.AuctionStartPrice,
		AuctionEndPrice:      req.AuctionEndPrice,
		AuctionFinalPrice:    req.AuctionFinalPrice,
		AuctionDurationSlots: req.AuctionDurationSlots,
		TTLSeconds:           req.TTLSeconds,
		OracleOffset:         req.OracleOffset,
	}
	result, err := s.store.PlaceOrder(c.Request.Context(), intent)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleJournal(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"activities": []journal.Activity{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	activities, err := s.journal.List(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	if activities == nil {
		activities = []journal.Activity{}
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}
