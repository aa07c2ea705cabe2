package sidecar

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ceyewan/eureka/clog"
	"github.com/ceyewan/eureka/discovery"
	"github.com/ceyewan/eureka/metrics"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestIDKey 请求 ID 在 context 中的键，可用于 clog.WithContextField
var RequestIDKey = requestIDKey{}

// RequestIDFromContext 读取请求 ID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// requestID 沿用调用方的请求 ID，没有时生成一个
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), RequestIDKey, id))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.requests.Inc(c.Request.Context(),
			metrics.L("route", route),
			metrics.L("code", strconv.Itoa(status)),
		)
		s.logger.DebugContext(c.Request.Context(), "request served",
			clog.String("method", c.Request.Method),
			clog.String("path", c.Request.URL.Path),
			clog.Int("status", status),
			clog.Duration("latency", time.Since(start)),
			clog.Bool("aborted", c.IsAborted()),
		)
	}
}

type instanceView struct {
	Status string `json:"status"`
	URL    string `json:"url"`
}

type appView struct {
	VIP       string         `json:"vip"`
	Instances []instanceView `json:"instances"`
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// lookup 查询失败时写出错误响应并返回 false
func (s *Server) lookup(c *gin.Context) (string, *discovery.App, bool) {
	vip := c.Param("vip")
	app, err := s.client.Lookup(c.Request.Context(), vip)
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "lookup failed",
			clog.String("vip", vip),
			clog.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return vip, nil, false
	}
	if app == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no result for vip " + vip})
		return vip, nil, false
	}
	return vip, app, true
}

func (s *Server) getApp(c *gin.Context) {
	vip, app, ok := s.lookup(c)
	if !ok {
		return
	}
	view := appView{VIP: vip, Instances: make([]instanceView, 0, app.Len())}
	for _, inst := range app.Instances() {
		view.Instances = append(view.Instances, instanceView{Status: inst.Status.String(), URL: inst.URL})
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) nextInstance(c *gin.Context) {
	vip, app, ok := s.lookup(c)
	if !ok {
		return
	}
	inst := app.GetNextAppInstance()
	if inst == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no UP instance for vip " + vip})
		return
	}
	c.JSON(http.StatusOK, instanceView{Status: inst.Status.String(), URL: inst.URL})
}
