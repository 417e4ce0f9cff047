package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-service/config"
	"github.com/yeremiapane/table-service/controllers"
	"github.com/yeremiapane/table-service/kds"
	"github.com/yeremiapane/table-service/middlewares"
	"github.com/yeremiapane/table-service/services"
	"github.com/yeremiapane/table-service/utils"
)

func SetupRouter(manager *services.TableManager, hub *kds.Hub, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.CORSMiddlewares(cfg.CORSOrigin))
	r.Use(middlewares.SecurityHeaders())
	if cfg.RateLimit > 0 {
		r.Use(middlewares.NewRateLimiter(cfg.RateLimit, cfg.RateBurst).RateLimit())
	}
	if len(cfg.Trusted) > 0 {
		_ = r.SetTrustedProxies(cfg.Trusted)
	}

	tableCtrl := controllers.NewTableController(manager)
	kdsCtrl := controllers.NewKDSController(hub)

	r.GET("/ping", func(c *gin.Context) {
		utils.RespondJSON(c, http.StatusOK, "pong", nil)
	})

	// Public
	r.GET("/tables/available", tableCtrl.GetAvailableTables)

	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())
	{
		auth.GET("/tables", tableCtrl.GetAllTables)
		auth.GET("/tables/me", tableCtrl.GetMyTable)
		auth.GET("/tables/:number", tableCtrl.GetTable)
		auth.POST("/tables/:number/occupy", tableCtrl.OccupyTable)
		auth.POST("/tables/:number/return", tableCtrl.ReturnTable)

		staff := auth.Group("/")
		staff.Use(middlewares.RequireRole(utils.RoleStaff))
		{
			staff.POST("/tables/:number/reserve", tableCtrl.ReserveTable)
			staff.POST("/tables/:number/free", tableCtrl.FreeTable)
			staff.POST("/tables/:number/check-in", tableCtrl.CheckInTable)
			staff.POST("/tables/:number/order", tableCtrl.AttachOrder)
			staff.PATCH("/tables/:number", tableCtrl.UpdateTableStatus)
			staff.PUT("/tables/:number", tableCtrl.UpdateTableStatus)

			staff.GET("/admin/tables/stats", tableCtrl.GetStats)
			staff.GET("/admin/tables/lookup/:id", tableCtrl.LookupTable)

			staff.GET("/ws", kdsCtrl.Handle)
		}

		admin := auth.Group("/")
		admin.Use(middlewares.RequireRole(utils.RoleAdmin))
		{
			admin.POST("/tables/reset", tableCtrl.ResetTables)
		}
	}

	return r
}
