package http

import (
	stdhttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/liveboard-server/internal/config"
	"github.com/vovakirdan/liveboard-server/internal/metrics"
	"github.com/vovakirdan/liveboard-server/internal/proto"
)

// NewServer builds an HTTP server with the page, socket and probe routes.
// Websocket upgrades are served from a plain mux: gin's writer cannot be hijacked.
func NewServer(hub Hub, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	ws := NewWSHandler(hub, cfg, logger)

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", liveUpgrades(ws, newRouter(cfg, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func newRouter(cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	pages := newPages(cfg.StaticDir)

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/", pages.index)
	router.GET("/live/:roomId", pages.index)
	router.NoRoute(pages.static)
	return router
}

// liveUpgrades sends websocket upgrades on /live/{token} to ws and everything else to next.
func liveUpgrades(ws *WSHandler, next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if token, ok := liveToken(r.URL.Path); ok && isWebSocketUpgrade(r) {
			ws.ServeRoom(w, r, token)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func liveToken(path string) (string, bool) {
	token, ok := strings.CutPrefix(path, proto.LivePathPrefix)
	if !ok || token == "" || strings.Contains(token, "/") {
		return "", false
	}
	return token, true
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

func isWebSocketUpgrade(r *stdhttp.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
