package handlers

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"learnhub/api/internal/cache"
	"learnhub/api/internal/config"
	"learnhub/api/internal/middleware"
	"learnhub/api/internal/models"
	"learnhub/api/internal/repository"
	"learnhub/api/internal/security"
	"learnhub/api/internal/service"
)

// AuthAPI and HierarchyAPI are the service surfaces the handlers call.
type AuthAPI interface {
	Signup(ctx context.Context, input service.SignupInput) (service.AuthResult, error)
	Login(ctx context.Context, email, password string) (service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (security.Pair, error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context, principalID string) (models.Principal, error)
}

type HierarchyAPI interface {
	CreateOwned(ctx context.Context, creator *security.Claims, input service.SubordinateInput, subordinateRole models.Role) (models.Principal, error)
	ListOwned(ctx context.Context, ownerID string, ownedRole models.Role) ([]models.Principal, error)
	Get(ctx context.Context, id string) (models.Principal, error)
	SetStatus(ctx context.Context, id string, status models.Status) error
	DeleteCascade(ctx context.Context, id string) (service.CascadeResult, error)
	DeleteSelfOnly(ctx context.Context, id string) error
}

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	codec     *security.Codec
	auth      AuthAPI
	hierarchy HierarchyAPI
	db        *pgxpool.Pool
	cache     *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cacheClient *redis.Client, cfg *config.AppConfig) HandlerSet {
	store := repository.NewStore(db)
	codec := security.NewCodec(cfg.Security)
	revoker := cache.NewRevocationList(cacheClient)

	registerValidations()

	return HandlerSet{
		log:       log,
		cfg:       cfg,
		codec:     codec,
		auth:      service.NewAuthService(store, codec, revoker, log),
		hierarchy: service.NewHierarchyService(store, log),
		db:        db,
		cache:     cacheClient,
	}
}

var validationsOnce sync.Once

// subordinaterole accepts only roles that can be owned through a
// hierarchy edge (tutor, student).
func registerValidations() {
	validationsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("subordinaterole", func(fl validator.FieldLevel) bool {
			role, ok := models.ParseRole(fl.Field().String())
			if !ok {
				return false
			}
			_, owned := models.RelationFor(role)
			return owned
		})
	})
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	auth := router.Group("/auth")
	auth.POST("/signup", h.Signup)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)

	users := router.Group("/users")
	users.Use(middleware.Authenticate(h.codec))

	users.GET("/profile", h.Profile)
	users.GET("/owned", middleware.RequireRoles(models.RoleAdmin, models.RoleTutor), h.ListOwned)
	users.POST("/hierarchy", middleware.RequireRoles(models.RoleAdmin), h.CreateTutor)
	users.POST("/tutor-student", middleware.RequireRoles(models.RoleTutor), h.CreateStudent)

	admin := users.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.PATCH("/:id/status", h.SetStatus)
	admin.DELETE("/:id", h.DeleteCascade)
	admin.DELETE("/:id/self", h.DeleteSelfOnly)
	admin.DELETE("/tutor/:id/cascade", h.DeleteTutorCascade)
	admin.DELETE("/admin/:id/cascade", h.DeleteAdminCascade)
}
