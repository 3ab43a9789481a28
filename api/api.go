package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/realDragonium/bungeespoof/config"
	"github.com/realDragonium/bungeespoof/identity"
)

// ReloadFunc re-reads the configuration and activates its spoof policy.
type ReloadFunc func() error

type NameResolver interface {
	ResolveName(ctx context.Context, username string) identity.PlayerIdentity
}

type API interface {
	Run(addr string) error
	Close() error
	Handler() http.Handler
}

// Response is the body of every JSON answer.
type Response struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    any    `json:"data,omitempty"`
}

type PolicyView struct {
	Policy config.SpoofPolicy `json:"policy"`
	Info   string             `json:"info"`
}

type IdentityView struct {
	Username string `json:"username"`
	UUID     string `json:"uuid"`
	Hex      string `json:"hex"`
	Source   string `json:"source"`
}

func NewAPI(policies *config.PolicyStore, reload ReloadFunc, resolver NameResolver, log logrus.FieldLogger) API {
	gin.SetMode(gin.ReleaseMode)
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := &api{
		router:   gin.New(),
		server:   &http.Server{},
		policies: policies,
		reload:   reload,
		resolver: resolver,
		log:      log,
	}
	a.setupRoutes()
	a.server.Handler = a.router
	return a
}

type api struct {
	router   *gin.Engine
	server   *http.Server
	policies *config.PolicyStore
	reload   ReloadFunc
	resolver NameResolver
	log      logrus.FieldLogger
}

func (a *api) setupRoutes() {
	a.router.Use(gin.Recovery())
	a.router.GET("/policy", a.getPolicy)
	a.router.POST("/reload", a.reloadHandler)
	a.router.GET("/uuid/:name", a.resolveUUID)
	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (a *api) Handler() http.Handler {
	return a.router
}

// Run blocks until the server is closed. Run after Close returns at once.
func (a *api) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	err = a.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *api) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.server.Shutdown(ctx)
}

func respondError(c *gin.Context, code int, msg string) {
	c.JSON(code, Response{Success: false, Msg: msg})
}

func respondSuccess(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Msg: msg, Data: data})
}

func (a *api) policyView() PolicyView {
	policy := a.policies.Load()
	return PolicyView{Policy: policy, Info: policy.InfoString()}
}

// GET /policy
func (a *api) getPolicy(c *gin.Context) {
	respondSuccess(c, "active policy", a.policyView())
}

// POST /reload
func (a *api) reloadHandler(c *gin.Context) {
	if a.reload == nil {
		respondError(c, http.StatusNotImplemented, "reload is not available")
		return
	}
	if err := a.reload(); err != nil {
		a.log.WithError(err).Warn("reload rejected")
		code := http.StatusInternalServerError
		var fieldErr *config.InvalidFieldError
		if errors.Is(err, config.ErrInvalidConfig) || errors.As(err, &fieldErr) {
			code = http.StatusBadRequest
		}
		respondError(c, code, err.Error())
		return
	}
	a.log.Info("spoof policy reloaded")
	respondSuccess(c, "success", a.policyView())
}

// GET /uuid/:name
func (a *api) resolveUUID(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		respondError(c, http.StatusBadRequest, "username is required")
		return
	}
	id := a.resolver.ResolveName(c.Request.Context(), name)
	respondSuccess(c, "resolved", IdentityView{
		Username: name,
		UUID:     id.UUID.String(),
		Hex:      id.Hex(),
		Source:   id.Source.String(),
	})
}
