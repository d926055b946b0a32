package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"maplocate/api/internal/config"
	"maplocate/api/internal/middleware"
	"maplocate/api/internal/permissions"
	"maplocate/api/internal/policy"
	"maplocate/api/internal/repository"
	"maplocate/api/internal/service"
	"maplocate/api/internal/session"
)

type HandlerSet struct {
	log       zerolog.Logger
	cfg       *config.AppConfig
	db        *pgxpool.Pool
	cache     redis.UniversalClient
	policy    *policy.Policy
	auth      *service.AuthService
	users     *service.UserService
	roles     *service.RoleService
	userRoles *service.UserRoleService
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache redis.UniversalClient, sessions *session.Manager, cfg *config.AppConfig) HandlerSet {
	useJSONFieldNames()

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	pol := policy.New(userRepo, roleRepo, sessions)

	return HandlerSet{
		log:       log,
		cfg:       cfg,
		db:        db,
		cache:     cache,
		policy:    pol,
		auth:      service.NewAuthService(userRepo, sessions, log),
		users:     service.NewUserService(userRepo, sessions, pol, log),
		roles:     service.NewRoleService(roleRepo, log),
		userRoles: service.NewUserRoleService(db, repository.NewTxRunner(db), log),
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/logout", h.Logout)

	admin := router.Group("/admin")
	{
		need := func(p permissions.Permission) gin.HandlerFunc {
			return middleware.RequirePermission(h.policy, p)
		}

		admin.POST("/user/", need(permissions.UsersAdd), h.CreateUser)
		admin.GET("/user/", need(permissions.UsersView), h.ListUsers)
		admin.GET("/user/:uid", need(permissions.UsersView), h.GetUser)
		admin.PATCH("/user/:uid", need(permissions.UsersEdit), h.UpdateUser)
		admin.DELETE("/user/:uid", middleware.RequireSuperuser(h.policy), h.DeleteUser)

		admin.GET("/user/:uid/roles", need(permissions.UsersView), h.GetUserRoles)
		admin.PUT("/user/:uid/roles", need(permissions.UsersRolesEdit), h.UpdateUserRoles)

		admin.POST("/roles/", need(permissions.RolesEdit), h.CreateRole)
		admin.GET("/roles/", need(permissions.RolesView), h.ListRoles)
		admin.GET("/roles/:role_id", need(permissions.RolesView), h.GetRole)
		admin.PATCH("/roles/:role_id", need(permissions.RolesEdit), h.UpdateRole)
		admin.DELETE("/roles/:role_id", need(permissions.RolesEdit), h.DeleteRole)

		admin.GET("/permissions", need(permissions.RolesView), h.ListPermissions)
	}
}
