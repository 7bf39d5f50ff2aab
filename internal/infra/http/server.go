package http

import (
	"net/http"

	"veritas/internal/config"
	"veritas/internal/domain"
	"veritas/internal/infra/ratelimit"
	"veritas/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	issuer   *usecase.CertificateIssuer
	verifier *usecase.CertificateVerifier
	rotator  *usecase.KeyRotator
	purge    *usecase.TenantPurge
	anchorer *usecase.LedgerAnchorer

	certs   usecase.CertificateRepository
	events  usecase.AuditEventRepository
	anchors usecase.AnchorRepository
	keys    domain.KeyRegistry

	adminAPIKey string

	rateLimiter domain.RateLimiter
}

type ServerDeps struct {
	Issuer   *usecase.CertificateIssuer
	Verifier *usecase.CertificateVerifier
	Rotator  *usecase.KeyRotator
	Purge    *usecase.TenantPurge
	Anchorer *usecase.LedgerAnchorer

	Certificates usecase.CertificateRepository
	AuditEvents  usecase.AuditEventRepository
	Anchors      usecase.AnchorRepository
	Keys         domain.KeyRegistry

	AdminAPIKey string
	RateLimiter domain.RateLimiter
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		r:           r,
		issuer:      deps.Issuer,
		verifier:    deps.Verifier,
		rotator:     deps.Rotator,
		purge:       deps.Purge,
		anchorer:    deps.Anchorer,
		certs:       deps.Certificates,
		events:      deps.AuditEvents,
		anchors:     deps.Anchors,
		keys:        deps.Keys,
		adminAPIKey: deps.AdminAPIKey,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
		return
	}
	if s.cfg.RateLimitRPS <= 0 {
		return
	}
	limiterCfg := ratelimit.Config{
		Requests: s.cfg.RateLimitRPS,
		Window:   s.cfg.RateLimitWindow,
	}
	if s.cfg.RedisAddr != "" {
		if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, limiterCfg); err == nil {
			s.rateLimiter = limiter
			return
		}
	}
	s.rateLimiter = ratelimit.NewMemoryLimiter(limiterCfg)
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.r.Group("/v1")
	{
		v1.GET("/certificates", s.handleListCertificates)
		v1.GET("/certificates/:certificate_id", s.handleGetCertificate)
		v1.GET("/chain/verify", s.handleVerifyChain)
		v1.GET("/keys/active", s.handleActiveKey)
		v1.GET("/audit/events", s.handleListAuditEvents)
		v1.GET("/audit/verify", s.handleVerifyAuditChain)
		v1.GET("/anchors", s.handleListAnchors)

		v1.POST("/anchors/run", s.handleRunAnchor)
		v1.DELETE("/tenants/:tenant_id", s.handlePurgeTenant)
	}

	// Routes with a ":" in the final segment collide with gin's param syntax
	// and are dispatched from NoRoute instead.
	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) handleNoRoute(c *gin.Context) {
	if c.Request.Method == http.MethodPost {
		switch c.Request.URL.Path {
		case "/v1/certificates:issue":
			s.handleIssue(c)
			return
		case "/v1/certificates:verify":
			s.handleVerify(c)
			return
		case "/v1/keys:rotate":
			s.handleRotateKey(c)
			return
		}
	}
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.r
}
