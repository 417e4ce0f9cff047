package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/table-service/kds"
	"github.com/yeremiapane/table-service/middlewares"
	"github.com/yeremiapane/table-service/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type KDSController struct {
	Hub *kds.Hub
}

func NewKDSController(hub *kds.Hub) *KDSController {
	return &KDSController{Hub: hub}
}

// Handle -> upgrade GET /ws ke websocket dashboard. Role dicek di middleware.
func (kc *KDSController) Handle(c *gin.Context) {
	role := c.GetString(middlewares.CtxRole)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	kc.Hub.RegisterClient(ws, role)
	utils.InfoLogger.WithField("role", role).Info("Dashboard client connected")

	// clients only listen; reading detects the disconnect
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	kc.Hub.UnregisterClient(ws)
}
