package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finapi/pkg/analytics"
	"finapi/pkg/apperr"
	"finapi/pkg/auth"
	"finapi/pkg/goals"
	"finapi/pkg/ledger"
	"finapi/pkg/logx"
	"finapi/pkg/receipt"
	"finapi/pkg/store"
)

type server struct {
	store     store.Store
	auth      *auth.Service
	ledger    *ledger.Service
	goals     *goals.Service
	analytics *analytics.Service
	receipts  *receipt.Service
	log       *logx.Logger

	corsOrigin string
	devErrors  bool
}

func (s *server) routes() *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(logx.GinMiddleware(s.log))
	r.Use(gin.CustomRecovery(s.recovered))
	if s.corsOrigin != "" {
		r.Use(cors(s.corsOrigin))
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Success: false, Message: "route not found"})
	})
	r.MaxMultipartMemory = receipt.MaxUploadSize

	r.GET("/health", s.healthHandler)

	api := r.Group("/api")

	public := api.Group("/auth")
	public.POST("/register", s.registerHandler)
	public.POST("/login", s.loginHandler)
	public.POST("/refresh", s.refreshHandler)
	public.POST("/logout", s.logoutHandler)

	authed := api.Group("")
	authed.Use(s.authMiddleware())
	authed.GET("/auth/profile", s.profileHandler)
	authed.GET("/categories", s.listCategoriesHandler)

	accounts := authed.Group("/accounts")
	accounts.POST("", s.createAccountHandler)
	accounts.GET("", s.listAccountsHandler)
	accounts.GET("/summary", s.accountSummaryHandler)
	accounts.GET("/:id", s.getAccountHandler)
	accounts.PUT("/:id", s.updateAccountHandler)
	accounts.DELETE("/:id", s.deleteAccountHandler)
	accounts.POST("/:id/reconcile", s.reconcileAccountHandler)

	txs := authed.Group("/transactions")
	txs.POST("", s.createTransactionHandler)
	txs.GET("", s.listTransactionsHandler)
	txs.GET("/:id", s.getTransactionHandler)
	txs.PUT("/:id", s.updateTransactionHandler)
	txs.DELETE("/:id", s.deleteTransactionHandler)

	gl := authed.Group("/goals")
	gl.POST("", s.createGoalHandler)
	gl.GET("", s.listGoalsHandler)
	gl.GET("/upcoming", s.upcomingGoalsHandler)
	gl.GET("/:id", s.getGoalHandler)
	gl.PUT("/:id", s.updateGoalHandler)
	gl.DELETE("/:id", s.deleteGoalHandler)
	gl.POST("/:id/add", s.contributeGoalHandler)

	an := authed.Group("/analytics")
	an.GET("/monthly", s.monthlyHandler)
	an.GET("/projections", s.projectionsHandler)
	an.GET("/dashboard", s.dashboardHandler)

	rc := authed.Group("/receipts")
	rc.POST("", s.uploadReceiptHandler)
	rc.GET("", s.listReceiptsHandler)
	rc.GET("/:id", s.getReceiptHandler)
	rc.POST("/:id/attach", s.attachReceiptHandler)

	return r
}

func (s *server) recovered(c *gin.Context, rec any) {
	logx.FromGin(c, s.log).Error("panic recovered", "panic", rec)
	c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{Success: false, Message: "internal server error"})
}

func (s *server) healthHandler(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.fail(c, apperr.Wrap(apperr.KindUnavailable, "database unavailable", err))
		return
	}
	ok(c, gin.H{"status": "ok"})
}

func cors(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
