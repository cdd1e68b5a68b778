package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smcbot/internal/agent"
	"smcbot/internal/config"
	"smcbot/internal/logger"
	"smcbot/internal/market"
	"smcbot/internal/report"
	"smcbot/internal/smc"
)

// Server 提供结构引擎的控制与查询接口。
// 引擎本体不可并发访问，所有读路径只消费 Runner 发布的快照。
type Server struct {
	addr    string
	runner  *agent.Runner
	loader  *config.Loader
	router  *gin.Engine
	baseCtx context.Context
}

type ServerConfig struct {
	Addr   string
	Runner *agent.Runner
	Loader *config.Loader
	// BaseCtx 用于通过 API 启动的会话；缺省为 context.Background()。
	BaseCtx context.Context
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("runner 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	if cfg.BaseCtx == nil {
		cfg.BaseCtx = context.Background()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:    cfg.Addr,
		runner:  cfg.Runner,
		loader:  cfg.Loader,
		router:  router,
		baseCtx: cfg.BaseCtx,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	api := s.router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/data", s.handleData)
	api.GET("/structures", s.handleStructures)
	api.GET("/orderblocks", s.handleOrderBlocks)
	api.GET("/fvg", s.handleFVG)
	api.GET("/eq", s.handleEqualLevels)
	api.GET("/report", s.handleReport)
	api.GET("/config", s.handleGetConfig)
	api.POST("/config", s.handleUpdateConfig)
	api.POST("/agent/start", s.handleAgentStart)
	api.POST("/agent/stop", s.handleAgentStop)
}

// handleAgentStart 开启新的行情会话（已在运行时返回 409）。
func (s *Server) handleAgentStart(c *gin.Context) {
	if err := s.runner.Start(s.baseCtx); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] 会话已启动 (%s)", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"agent": s.runner.Status()})
}

func (s *Server) handleAgentStop(c *gin.Context) {
	s.runner.Stop()
	logger.Infof("[api] 会话已停止 (%s)", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"agent": s.runner.Status()})
}

// Handler 暴露路由，便于测试直接挂在 httptest 上。
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agent": s.runner.Status()})
}

type candleJSON struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	Final    bool    `json:"final"`
}

func toCandleJSON(candles []market.Candle) []candleJSON {
	out := make([]candleJSON, len(candles))
	for i, k := range candles {
		out[i] = candleJSON{
			OpenTime: k.OpenTime,
			Open:     k.Open,
			High:     k.High,
			Low:      k.Low,
			Close:    k.Close,
			Volume:   k.Volume,
			Final:    k.Final,
		}
	}
	return out
}

func (s *Server) handleData(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit 非法"})
		return
	}
	candles := s.runner.Candles(limit)
	c.JSON(http.StatusOK, gin.H{"candles": toCandleJSON(candles)})
}

func (s *Server) handleStructures(c *gin.Context) {
	events := s.runner.Events()
	if tf := c.Query("timeframe"); tf != "" {
		filtered := events[:0:0]
		for _, e := range events {
			if e.Timeframe.String() == tf {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleOrderBlocks(c *gin.Context) {
	blocks, err := s.runner.OrderBlocks()
	if err != nil {
		s.detectorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_blocks": blocks})
}

func (s *Server) handleFVG(c *gin.Context) {
	gaps, err := s.runner.FVGs()
	if err != nil {
		s.detectorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fvg": gaps})
}

func (s *Server) handleEqualLevels(c *gin.Context) {
	eqh, eql, err := s.runner.EqualHighsLows()
	if err != nil {
		s.detectorError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"eqh": eqh, "eql": eql})
}

// detectorError 区分「数据还不够」与真正的错误。
func (s *Server) detectorError(c *gin.Context, err error) {
	if errors.Is(err, smc.ErrInsufficientData) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) handleReport(c *gin.Context) {
	candles := s.runner.Candles(0)
	if len(candles) == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "暂无 K 线数据"})
		return
	}
	blocks, _ := s.runner.OrderBlocks()
	gaps, _ := s.runner.FVGs()
	st := s.runner.Status()

	data := report.Data{
		Symbol:      st.Symbol,
		Interval:    st.Interval,
		Candles:     candles,
		Events:      s.runner.Events(),
		OrderBlocks: blocks,
		FVGs:        gaps,
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(c.Writer, data); err != nil {
		logger.Errorf("[api] 渲染报表失败: %v", err)
	}
}

func (s *Server) handleGetConfig(c *gin.Context) {
	if s.loader == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "未启用配置文件"})
		return
	}
	settings, err := s.loader.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": settings})
}

// handleUpdateConfig 写回配置文件。新参数在下次会话启动时生效。
func (s *Server) handleUpdateConfig(c *gin.Context) {
	if s.loader == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "未启用配置文件"})
		return
	}
	var req config.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.loader.Save(req); err != nil {
		logger.Errorf("[api] 保存配置失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[api] 配置已更新 (%s)", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "配置已保存，重启后生效"})
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
