package routes

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/socialbbs/config"
	"github.com/cppla/socialbbs/controllers"
	"github.com/cppla/socialbbs/middleware"
	"github.com/cppla/socialbbs/models"
	"github.com/cppla/socialbbs/upload"
	"github.com/cppla/socialbbs/utils"
)

// Deps is everything the router needs beyond configuration.
type Deps struct {
	DB       *gorm.DB
	Store    upload.Store
	Registry *utils.UploadRegistry
	// Metrics defaults to a fresh registry with Go and process collectors.
	Metrics *prometheus.Registry
	// AccessLog defaults to a rolling file logger at cfg.GinPath.
	AccessLog *zap.Logger
}

// NewGatekeeper builds the upload Gatekeeper and records every stored file in the registry.
func NewGatekeeper(cfg config.AppConfig, store upload.Store, registry *utils.UploadRegistry, reg prometheus.Registerer) *upload.Gatekeeper {
	opts := []upload.Option{
		upload.WithLogger(utils.Logger.Named("upload")),
		upload.WithMetrics(upload.NewMetrics(reg)),
	}
	if registry != nil {
		opts = append(opts, upload.WithRecorder(upload.RecorderFunc(func(ctx context.Context, f upload.StoredFile) error {
			return registry.Record(ctx, &models.UploadedFile{
				Name:         f.Name,
				Dir:          f.Dir,
				Ext:          f.Ext,
				Field:        f.Field,
				MimeType:     f.MimeType,
				Size:         f.Size,
				URL:          f.URL,
				OriginalName: f.OriginalName,
			})
		})))
	}
	return upload.New(store, NewPolicy(cfg), opts...)
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, deps Deps) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = prometheus.NewRegistry()
		metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	accessLog := deps.AccessLog
	if accessLog == nil {
		gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err != nil {
			utils.Sugar.Warnf("gin access log disabled: %v", err)
			gl = utils.Logger
		}
		accessLog = gl
	}
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	gate := NewGatekeeper(cfg, deps.Store, deps.Registry, metrics)
	serveUploads(r, cfg, deps.Store, gate.Policy())

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))

	authController := controllers.NewAuthController(deps.DB, deps.Store, deps.Registry, cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	postController := controllers.NewPostController(deps.DB, deps.Store, deps.Registry)

	authRequired := middleware.AuthRequired(cfg.JWTSecret)
	uploadLimit := middleware.RateLimit(cfg.UploadRateLimitPerMinute)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/me", authRequired, authController.Me)

	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id", postController.GetPost)

	protected := api.Group("")
	protected.Use(authRequired, middleware.RateLimit(cfg.RateLimitPerMinute))
	// Authentication runs before the Gatekeeper so anonymous bodies are never stored.
	protected.POST("/posts", uploadLimit, gate.Single("image"), postController.CreatePost)
	protected.POST("/posts/:id/photos", uploadLimit, gate.Array("photos", 4), postController.AddPhotos)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/comments", gate.None(), postController.CreateComment)
	protected.PATCH("/profile", uploadLimit, gate.Fields(
		upload.FieldSpec{Name: "avatar", MaxCount: 1},
		upload.FieldSpec{Name: "cover", MaxCount: 1},
	), authController.UpdateProfile)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, "route not found")
	})

	return r
}

// serveUploads exposes stored files under their public base when the backend lives in-process.
// Only extensions mapping to an allowed image type are served inline.
func serveUploads(r *gin.Engine, cfg config.AppConfig, store upload.Store, policy upload.Policy) {
	base := "/" + strings.Trim(cfg.UploadPublicBase, "/")
	if base == "/" || strings.Contains(cfg.UploadPublicBase, "://") {
		return
	}
	var serve gin.HandlerFunc
	switch s := store.(type) {
	case *upload.DiskStore:
		serve = func(ctx *gin.Context) {
			name := ctx.Param("name")
			if strings.HasPrefix(name, ".") || filepath.Base(name) != name {
				utils.Error(ctx, http.StatusNotFound, "file not found")
				return
			}
			p := filepath.Join(s.Dir(), name)
			if info, err := os.Stat(p); err != nil || info.IsDir() {
				utils.Error(ctx, http.StatusNotFound, "file not found")
				return
			}
			setServeHeaders(ctx, policy, name)
			ctx.File(p)
		}
	case *upload.MemoryStore:
		serve = func(ctx *gin.Context) {
			name := ctx.Param("name")
			b, ok := s.Get(name)
			if !ok {
				utils.Error(ctx, http.StatusNotFound, "file not found")
				return
			}
			ctx.Data(http.StatusOK, setServeHeaders(ctx, policy, name), b)
		}
	default:
		return
	}
	r.GET(base+"/:name", serve)
	r.HEAD(base+"/:name", serve)
}

// setServeHeaders sets the response type of a stored file and returns it. Anything that is not
// an allowed image is sent as an attachment, and nosniff stops browsers from guessing otherwise.
func setServeHeaders(ctx *gin.Context, policy upload.Policy, name string) string {
	contentType, inline := policy.ServeType(name)
	ctx.Header("Content-Type", contentType)
	ctx.Header("X-Content-Type-Options", "nosniff")
	if !inline {
		ctx.Header("Content-Disposition", "attachment")
	}
	return contentType
}
