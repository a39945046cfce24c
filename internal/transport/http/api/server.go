package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"optlab/internal/app"
	"optlab/internal/store"
)

// Server 提供提交回测、查询进度与信号的 HTTP 接口。
type Server struct {
	addr      string
	svc       *app.Service
	router    *gin.Engine
	runSchema *jsonschema.Schema
}

const runRequestSchema = `{
	"type": "object",
	"required": ["symbol", "strategy"],
	"properties": {
		"symbol":   {"type": "string", "minLength": 1},
		"strategy": {"type": "string", "minLength": 1},
		"kind":     {"type": "string", "enum": ["equity", "options"]}
	},
	"additionalProperties": false
}`

func NewServer(addr string, svc *app.Service) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service 不能为空")
	}
	if addr == "" {
		addr = ":8090"
	}
	schema, err := compileSchema(runRequestSchema)
	if err != nil {
		return nil, fmt.Errorf("编译请求 schema 失败: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{addr: addr, svc: svc, router: router, runSchema: schema}
	s.registerRoutes()
	return s, nil
}

func compileSchema(raw string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.POST("/runs", s.handleRunSubmit)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/report", s.handleRunReport)
	api.GET("/signal", s.handleSignal)
	api.GET("/strategies", s.handleStrategies)
	api.GET("/data", s.handleManifest)
	api.POST("/fetch", s.handleFetch)
}

// Router 暴露给测试用。
func (s *Server) Router() http.Handler { return s.router }

type runRequest struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
	Kind     string `json:"kind"`
}

func (s *Server) handleRunSubmit(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var payload any
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体不是合法 JSON"})
		return
	}
	if err := s.runSchema.Validate(payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req runRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var id string
	switch req.Kind {
	case "", "equity":
		id, err = s.svc.SubmitEquityRun(c.Request.Context(), req.Symbol, req.Strategy)
	case "options":
		id, err = s.svc.SubmitOptionsRun(c.Request.Context(), req.Symbol, req.Strategy)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	minMetric, _ := strconv.ParseFloat(c.DefaultQuery("min_metric", "0"), 64)
	filter := store.RunFilter{
		Symbol:    c.Query("symbol"),
		Strategy:  c.Query("strategy"),
		Kind:      store.RunKind(c.Query("kind")),
		Status:    store.RunStatus(c.Query("status")),
		MetricKey: c.Query("metric"),
		MinMetric: minMetric,
		Limit:     limit,
		Offset:    offset,
	}
	runs, err := s.svc.Runs().List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	rec, err := s.svc.Runs().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": rec})
}

func (s *Server) handleRunReport(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.svc.Report(c.Request.Context(), c.Param("id"), &buf); err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) handleSignal(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 必填"})
		return
	}
	alert, err := s.svc.Signal(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": alert})
}

func (s *Server) handleStrategies(c *gin.Context) {
	snap := s.svc.Roster().Snapshot()
	names := make([]string, 0, snap.Registry.Len())
	for _, strat := range snap.Registry.All() {
		names = append(names, strat.Name())
	}
	c.JSON(http.StatusOK, gin.H{
		"version":  snap.Version,
		"equity":   names,
		"options":  app.OptionStrategyNames(),
		"loadedAt": snap.LoadedAt,
	})
}

func (s *Server) handleManifest(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 必填"})
		return
	}
	m, err := s.svc.Manifest(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manifest": m})
}

func (s *Server) handleFetch(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := s.svc.Refresh(c.Request.Context(), req.Symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"manifest": m})
}

// Start 启动服务并阻塞，ctx 取消后优雅退出。
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
