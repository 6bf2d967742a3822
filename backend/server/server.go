package server

import (
	"database/sql"
	"net/http"
	"time"

	"cleanstreet/backend/auth"
	"cleanstreet/backend/cache"
	"cleanstreet/backend/config"
	"cleanstreet/backend/db"
	"cleanstreet/backend/metrics"
	"cleanstreet/backend/notify"
	"cleanstreet/backend/storage"

	"github.com/apex/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

const (
	EndPointHealth  = "/health"
	EndPointMetrics = "/metrics"
	EndPointUploads = "/uploads"

	EndPointAuth           = "/api/auth"
	EndPointComplaints     = "/api/complaints"
	EndPointVotes          = "/api/votes"
	EndPointComments       = "/api/comments"
	EndPointUsers          = "/api/users"
	EndPointAdmin          = "/api/admin"
	EndPointVolunteerSpace = "/api/volunteer/complaints"
)

// Deps are the collaborators a Server works with. Cache may be nil.
type Deps struct {
	DB       *sql.DB
	Tokens   *auth.Tokens
	Notifier notify.Notifier
	Mailer   notify.Sender
	Storage  storage.Storage
	Cache    *cache.StatsCache
}

type Server struct {
	cfg      *config.Config
	db       *sql.DB
	tokens   *auth.Tokens
	notifier notify.Notifier
	mailer   notify.Sender
	store    storage.Storage
	cache    *cache.StatsCache
}

func New(cfg *config.Config, d Deps) *Server {
	return &Server{
		cfg:      cfg,
		db:       d.DB,
		tokens:   d.Tokens,
		notifier: d.Notifier,
		mailer:   d.Mailer,
		store:    d.Storage,
		cache:    d.Cache,
	}
}

// Router builds the gin engine with every route of the service.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.CustomRecovery(recovered))
	router.Use(metrics.Middleware())
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowOrigins:     s.cfg.AllowedOrigins,
		AllowCredentials: !allowsAny(s.cfg.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{EndPointUploads, EndPointMetrics})))
	router.MaxMultipartMemory = 8 << 20

	limited := rateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst)

	router.GET(EndPointHealth, s.Health)
	router.GET("/api/health", s.Health)
	router.GET(EndPointMetrics, metrics.Handler())
	if local, ok := s.store.(*storage.LocalStorage); ok {
		router.Static(EndPointUploads, local.Dir())
	}

	anyone := s.authorize(auth.RoleUser, auth.RoleVolunteer, auth.RoleAdmin)
	citizen := s.authorize(auth.RoleUser)
	admin := s.authorize(auth.RoleAdmin)
	volunteer := s.authorize(auth.RoleVolunteer)

	authGroup := router.Group(EndPointAuth)
	{
		authGroup.POST("/register", limited, s.RegisterUser)
		authGroup.POST("/login", limited, s.LoginUser)
		authGroup.GET("/me", citizen, s.CurrentUser)
		authGroup.POST("/forgot-password", limited, s.forgotPassword(db.AccountUser))
		authGroup.POST("/reset-password/:token", limited, s.resetPassword(db.AccountUser))
	}

	complaints := router.Group(EndPointComplaints)
	{
		complaints.GET("/uploads/:filename", s.ServeUpload)
		complaints.GET("", anyone, s.ListComplaints)
		complaints.POST("", citizen, limited, s.CreateComplaint)
		complaints.GET("/user", citizen, s.UserComplaints)
		complaints.GET("/stats/overview", citizen, s.ComplaintOverview)
		complaints.GET("/stats/all", anyone, s.ComplaintTotals)
		complaints.GET("/nearby", anyone, s.NearbyComplaints)
		complaints.GET("/map", anyone, s.ComplaintMap)
		complaints.GET("/clusters", anyone, s.ComplaintClusters)
		complaints.GET("/:id", anyone, s.GetComplaint)
		complaints.PUT("/:id/status", s.authorize(auth.RoleAdmin, auth.RoleVolunteer), s.UpdateStatus)
		complaints.PUT("/:id/assign", admin, s.AssignComplaint)
		complaints.PUT("/:id/unassign", admin, s.UnassignComplaint)
		complaints.DELETE("/:id", admin, s.DeleteComplaint)
	}

	votes := router.Group(EndPointVotes)
	{
		votes.GET("/complaint/:complaintId/stats", s.VoteStats)
		votes.POST("/:complaintId", citizen, s.CastVote)
		votes.GET("/:complaintId", citizen, s.GetVote)
	}

	comments := router.Group(EndPointComments, anyone)
	{
		comments.GET("/complaint/:complaintId", s.ListComments)
		comments.POST("", s.CreateComment)
		comments.POST("/:id/like", s.LikeComment)
		comments.DELETE("/:id", s.DeleteComment)
	}

	users := router.Group(EndPointUsers, anyone)
	{
		users.GET("", s.ListUsers)
		users.GET("/stats", s.IdentityStats)
	}

	adminGroup := router.Group(EndPointAdmin)
	{
		adminGroup.POST("/login", limited, s.LoginAdmin)
		adminGroup.POST("/register", admin, s.RegisterAdmin)
		adminGroup.GET("/me", admin, s.CurrentAdmin)
		adminGroup.GET("/admins", admin, s.ListAdmins)
		adminGroup.PUT("/:id/toggle-active", admin, s.ToggleAdminActive)
		adminGroup.POST("/forgot-password", limited, s.forgotPassword(db.AccountAdmin))
		adminGroup.PUT("/reset-password/:token", limited, s.resetPassword(db.AccountAdmin))

		ac := adminGroup.Group("/complaints", admin)
		ac.GET("", s.AdminListComplaints)
		ac.GET("/export", s.ExportComplaints)
		ac.GET("/stats/dashboard", s.Dashboard)
		ac.GET("/:id", s.AdminGetComplaint)
		ac.PUT("/:id/status", s.UpdateStatus)
		ac.PUT("/:id/assign", s.AssignComplaint)
		ac.PUT("/:id/unassign", s.UnassignComplaint)
		ac.DELETE("/:id", s.DeleteComplaint)
		ac.DELETE("/:id/comments/:commentId", s.AdminDeleteComment)

		av := adminGroup.Group("/volunteers")
		av.POST("/register", limited, s.RegisterVolunteer)
		av.POST("/login", limited, s.LoginVolunteer)
		av.POST("/forgot-password", limited, s.forgotPassword(db.AccountVolunteer))
		av.PUT("/reset-password/:token", limited, s.resetPassword(db.AccountVolunteer))
		av.GET("/me", volunteer, s.CurrentVolunteer)
		av.GET("", admin, s.ListVolunteers)
		av.POST("", admin, s.CreateVolunteer)
		av.GET("/:id", admin, s.GetVolunteer)
		av.PUT("/:id/approve", admin, s.ApproveVolunteer)
		av.PUT("/:id/block", admin, s.BlockVolunteer)
		av.DELETE("/:id", admin, s.DeleteVolunteer)

		au := adminGroup.Group("/users", admin)
		au.GET("", s.AdminListUsers)
		au.GET("/:id", s.AdminGetUser)
		au.PUT("/:id/block", s.BlockUser)
		au.DELETE("/:id", s.DeleteUser)
	}

	workspace := router.Group(EndPointVolunteerSpace, volunteer)
	{
		workspace.GET("", s.VolunteerComplaints)
		workspace.GET("/stats", s.VolunteerStats)
		workspace.GET("/stats/dashboard", s.VolunteerStats)
		workspace.GET("/:id", s.VolunteerComplaint)
		workspace.PUT("/:id/status", s.UpdateStatus)
	}

	router.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Route not found")
	})
	return router
}

func (s *Server) Health(c *gin.Context) {
	if err := s.db.PingContext(c.Request.Context()); err != nil {
		log.Errorf("Health check: database unreachable: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "service": "cleanstreet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "cleanstreet"})
}

func recovered(c *gin.Context, err any) {
	log.Errorf("Panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	fail(c, http.StatusInternalServerError, "Something went wrong!")
}

func allowsAny(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
