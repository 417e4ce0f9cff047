package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-service/middlewares"
	"github.com/yeremiapane/table-service/models"
	"github.com/yeremiapane/table-service/services"
	"github.com/yeremiapane/table-service/storage"
	"github.com/yeremiapane/table-service/utils"
)

type response struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupTableRouter(t *testing.T) (*gin.Engine, *services.TableManager) {
	t.Helper()
	utils.InitLogger("error")
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore(models.DefaultTables)
	_, err := storage.SeedIfEmpty(context.Background(), store)
	require.NoError(t, err)
	manager := services.NewTableManager(store)
	tableCtrl := NewTableController(manager)

	r := gin.New()
	r.GET("/tables/available", tableCtrl.GetAvailableTables)
	auth := r.Group("/", middlewares.AuthMiddleware())
	auth.GET("/tables", tableCtrl.GetAllTables)
	auth.GET("/tables/me", tableCtrl.GetMyTable)
	auth.GET("/tables/:number", tableCtrl.GetTable)
	auth.POST("/tables/:number/occupy", tableCtrl.OccupyTable)
	auth.POST("/tables/:number/return", tableCtrl.ReturnTable)
	auth.POST("/tables/:number/reserve", tableCtrl.ReserveTable)
	auth.POST("/tables/:number/free", tableCtrl.FreeTable)
	auth.POST("/tables/:number/check-in", tableCtrl.CheckInTable)
	auth.POST("/tables/:number/order", tableCtrl.AttachOrder)
	auth.PATCH("/tables/:number", tableCtrl.UpdateTableStatus)
	auth.POST("/tables/reset", tableCtrl.ResetTables)
	auth.GET("/admin/tables/stats", tableCtrl.GetStats)
	auth.GET("/admin/tables/lookup/:id", tableCtrl.LookupTable)
	return r, manager
}

func tokenFor(t *testing.T, role, email string) string {
	t.Helper()
	tok, err := utils.GenerateToken("u-"+role, email, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func call(t *testing.T, r http.Handler, method, path, token string, body interface{}) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func decodeTable(t *testing.T, raw json.RawMessage) map[string]interface{} {
	t.Helper()
	var table map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &table))
	return table
}

func TestGetAllTables(t *testing.T) {
	r, _ := setupTableRouter(t)
	staff := tokenFor(t, utils.RoleStaff, "staff@x.com")

	code, resp := call(t, r, http.MethodGet, "/tables", staff, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "List of tables", resp.Message)
	var tables []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &tables))
	assert.Len(t, tables, 6)
	assert.NotContains(t, tables[0], "id")
	assert.NotContains(t, tables[0], "version")
	assert.Equal(t, []interface{}{}, tables[0]["orderHistory"])

	code, resp = call(t, r, http.MethodGet, "/tables?location=outdoor&minCapacity=3", staff, nil)
	assert.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &tables))
	require.Len(t, tables, 1)
	assert.Equal(t, float64(4), tables[0]["number"])

	code, _ = call(t, r, http.MethodGet, "/tables?location=rooftop", staff, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, r, http.MethodGet, "/tables?minCapacity=many", staff, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, r, http.MethodGet, "/tables", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestGetTable(t *testing.T) {
	r, _ := setupTableRouter(t)
	staff := tokenFor(t, utils.RoleStaff, "staff@x.com")

	code, resp := call(t, r, http.MethodGet, "/tables/3", staff, nil)
	assert.Equal(t, http.StatusOK, code)
	table := decodeTable(t, resp.Data)
	assert.Equal(t, float64(6), table["capacity"])
	assert.Equal(t, "indoor", table["location"])

	code, _ = call(t, r, http.MethodGet, "/tables/42", staff, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, r, http.MethodGet, "/tables/three", staff, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOccupyAsCustomer(t *testing.T) {
	r, _ := setupTableRouter(t)
	linh := tokenFor(t, utils.RoleCustomer, "linh@x.com")
	bao := tokenFor(t, utils.RoleCustomer, "bao@x.com")

	body := gin.H{"customerInfo": gin.H{"name": "Linh", "email": "spoofed@x.com"}}
	code, resp := call(t, r, http.MethodPost, "/tables/3/occupy", linh, body)
	require.Equal(t, http.StatusOK, code, resp.Message)
	table := decodeTable(t, resp.Data)
	assert.Equal(t, "occupied", table["status"])
	info := table["customerInfo"].(map[string]interface{})
	assert.Equal(t, "linh@x.com", info["email"], "customer email comes from the token")
	assert.Nil(t, table["currentOrder"])

	code, resp = call(t, r, http.MethodPost, "/tables/3/occupy", bao, gin.H{"customerInfo": gin.H{"name": "Bao"}})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "table already occupied", resp.Message)

	code, resp = call(t, r, http.MethodPost, "/tables/9/occupy", bao, gin.H{"customerInfo": gin.H{"name": "Bao"}})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "table not found", resp.Message)

	code, _ = call(t, r, http.MethodPost, "/tables/1/occupy", bao, gin.H{"customerInfo": gin.H{"name": ""}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = call(t, r, http.MethodPost, "/tables/4/reserve", linh, gin.H{"customerInfo": gin.H{"name": "Linh"}})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "you already have a table", resp.Message)

	// other customers see the table but not who sits there
	code, resp = call(t, r, http.MethodGet, "/tables/3", bao, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Nil(t, decodeTable(t, resp.Data)["customerInfo"])

	code, resp = call(t, r, http.MethodGet, "/tables/me", linh, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), decodeTable(t, resp.Data)["number"])

	code, resp = call(t, r, http.MethodPost, "/tables/3/return", bao, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "this table is held by another customer", resp.Message)

	code, _ = call(t, r, http.MethodPost, "/tables/3/return", linh, nil)
	assert.Equal(t, http.StatusOK, code)

	code, resp = call(t, r, http.MethodGet, "/tables/me", linh, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStaffOrderFlow(t *testing.T) {
	r, _ := setupTableRouter(t)
	staff := tokenFor(t, utils.RoleStaff, "staff@x.com")

	code, _ := call(t, r, http.MethodPost, "/tables/3/occupy", staff, gin.H{"customerInfo": gin.H{"name": "Linh", "email": "linh@x.com"}})
	require.Equal(t, http.StatusOK, code)

	latte := gin.H{
		"orderId":       "o1",
		"items":         []gin.H{{"name": "Latte", "quantity": 2, "unitPrice": 45000}},
		"totalAmount":   90000,
		"paymentStatus": "pending",
	}
	code, resp := call(t, r, http.MethodPost, "/tables/3/order", staff, latte)
	require.Equal(t, http.StatusOK, code, resp.Message)
	table := decodeTable(t, resp.Data)
	assert.Equal(t, float64(90000), table["currentOrder"].(map[string]interface{})["totalAmount"])

	code, resp = call(t, r, http.MethodPost, "/tables/3/order", staff, latte)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, resp.Message, "already attached", "staff get the raw error")

	code, _ = call(t, r, http.MethodPost, "/tables/3/order", staff, gin.H{
		"items":       []gin.H{{"name": "Tea", "quantity": 1, "unitPrice": 30000}},
		"totalAmount": 10,
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, r, http.MethodPost, "/tables/3/order", staff, gin.H{
		"orderId": "o2",
		"items":   []gin.H{{"name": "Tea", "quantity": 1, "unitPrice": 30000}},
	})
	require.Equal(t, http.StatusOK, code)

	code, resp = call(t, r, http.MethodPost, "/tables/3/free", staff, nil)
	require.Equal(t, http.StatusOK, code)
	table = decodeTable(t, resp.Data)
	assert.Equal(t, "available", table["status"])
	assert.Len(t, table["orderHistory"], 2)

	code, _ = call(t, r, http.MethodPost, "/tables/3/free", staff, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = call(t, r, http.MethodPost, "/tables/1/order", staff, latte)
	assert.Equal(t, http.StatusConflict, code)
}

func TestReserveAndCheckIn(t *testing.T) {
	r, _ := setupTableRouter(t)
	staff := tokenFor(t, utils.RoleStaff, "staff@x.com")

	code, _ := call(t, r, http.MethodPost, "/tables/5/check-in", staff, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, resp := call(t, r, http.MethodPost, "/tables/5/reserve", staff, gin.H{"customerInfo": gin.H{"name": "Party of eight"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "reserved", decodeTable(t, resp.Data)["status"])

	code, resp = call(t, r, http.MethodPost, "/tables/5/check-in", staff, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "occupied", decodeTable(t, resp.Data)["status"])
}

func TestUpdateTableStatus(t *testing.T) {
	r, _ := setupTableRouter(t)
	staff := tokenFor(t, utils.RoleStaff, "staff@x.com")

	tests := []struct {
		name string
		body gin.H
		want int
	}{
		{"missing status", gin.H{}, http.StatusBadRequest},
		{"unknown status", gin.H{"status": "closed"}, http.StatusBadRequest},
		{"occupied without customer", gin.H{"status": "occupied"}, http.StatusBadRequest},
		{"reserve", gin.H{"status": "Reserved", "customerInfo": gin.H{"name": "Linh"}}, http.StatusOK},
		{"reserve twice", gin.H{"status": "reserved", "customerInfo": gin.H{"name": "Linh"}}, http.StatusConflict},
		{"release", gin.H{"status": "available"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := call(t, r, http.MethodPatch, "/tables/2", staff, tt.body)
			assert.Equal(t, tt.want, code, resp.Message)
		})
	}
}

func TestResetStatsAndLookup(t *testing.T) {
	r, manager := setupTableRouter(t)
	admin := tokenFor(t, utils.RoleAdmin, "admin@x.com")

	_, err := manager.Occupy(context.Background(), 1, &models.CustomerInfo{Name: "Linh"})
	require.NoError(t, err)

	code, resp := call(t, r, http.MethodGet, "/admin/tables/stats", admin, nil)
	require.Equal(t, http.StatusOK, code)
	var stats services.TableStats
	require.NoError(t, json.Unmarshal(resp.Data, &stats))
	assert.Equal(t, services.TableStats{Available: 5, Occupied: 1, Total: 6}, stats)

	table, err := manager.Get(context.Background(), 1)
	require.NoError(t, err)
	code, resp = call(t, r, http.MethodGet, "/admin/tables/lookup/"+table.ID, admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), table.ID)

	code, _ = call(t, r, http.MethodGet, "/admin/tables/lookup/nope", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = call(t, r, http.MethodPost, "/tables/reset", admin, nil)
	require.Equal(t, http.StatusOK, code)
	var tables []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &tables))
	assert.Len(t, tables, 6)
	assert.Equal(t, "available", tables[0]["status"])
}

func TestAvailableTablesArePublic(t *testing.T) {
	r, manager := setupTableRouter(t)
	_, err := manager.Occupy(context.Background(), 2, &models.CustomerInfo{Name: "Linh"})
	require.NoError(t, err)

	code, resp := call(t, r, http.MethodGet, "/tables/available", "", nil)
	require.Equal(t, http.StatusOK, code)
	var tables []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &tables))
	assert.Len(t, tables, 5)
}

func TestCustomerMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&services.TableError{Kind: services.ErrNotFound}, "table not found"},
		{&services.TableError{Kind: services.ErrConflict, Status: models.TableOccupied}, "table already occupied"},
		{&services.TableError{Kind: services.ErrConflict, Status: models.TableReserved}, "table is reserved"},
		{&services.TableError{Kind: services.ErrConflict, Status: models.TableAvailable}, "table is not in use"},
		{&services.TableError{Kind: services.ErrConflict, Status: models.TableAvailable, Cause: services.ErrAlreadySeated}, "you already have a table"},
		{&services.TableError{Kind: services.ErrBadRequest, Reason: "customer name is required"}, "invalid request: customer name is required"},
		{&services.TableError{Kind: services.ErrStoreUnavailable}, "service temporarily unavailable, please try again"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, customerMessage(tt.err))
	}
	assert.Equal(t, http.StatusInternalServerError, statusCode(&services.TableError{Kind: services.ErrStoreUnavailable}))
}
