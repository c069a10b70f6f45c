package web_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/autowire"
	"github.com/gocrud/autowire/config"
	"github.com/gocrud/autowire/configure/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthController struct{}

func (c *healthController) MountRoutes(router gin.IRouter) {
	router.GET("/health", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "ok")
	})
}

func TestWebHostRoutes(t *testing.T) {
	app, err := autowire.NewBuilder().
		Configure(web.Configure(func(ctx *autowire.BuildContext, wb *web.Builder) {
			wb.Get("/ping", func(c *gin.Context) {
				c.String(http.StatusOK, "pong")
			})
			wb.AddController(&healthController{})
		})).
		Build()
	require.NoError(t, err)
	defer app.Close()

	host, err := autowire.Resolve[*web.Host](app, "web.host")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	host.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/health", nil)
	host.Engine().ServeHTTP(w, req)
	assert.Equal(t, "ok", w.Body.String())
}

func TestWebHostStartStop(t *testing.T) {
	cfg, err := config.NewBuilder().AddMap(map[string]any{
		"web": map[string]any{"port": 0},
	}).Build()
	require.NoError(t, err)

	app, err := autowire.NewBuilder().
		UseConfiguration(cfg).
		Configure(web.Configure(func(ctx *autowire.BuildContext, wb *web.Builder) {
			wb.Get("/ping", func(c *gin.Context) {
				c.String(http.StatusOK, "pong")
			})
		})).
		Build()
	require.NoError(t, err)

	host, err := autowire.Resolve[*web.Host](app, "web.host")
	require.NoError(t, err)
	require.NoError(t, host.Start())

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + host.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	// Close 经销毁方法 Stop(true) 强制停止主机
	app.Close()

	_, err = client.Get("http://" + host.Addr() + "/ping")
	assert.Error(t, err)
}
