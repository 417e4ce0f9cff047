package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-service/middlewares"
	"github.com/yeremiapane/table-service/models"
	"github.com/yeremiapane/table-service/services"
	"github.com/yeremiapane/table-service/utils"
)

type TableController struct {
	Manager *services.TableManager
}

func NewTableController(m *services.TableManager) *TableController {
	return &TableController{Manager: m}
}

type customerRequest struct {
	CustomerInfo *models.CustomerInfo `json:"customerInfo"`
}

type statusRequest struct {
	Status       models.TableStatus   `json:"status" binding:"required"`
	CustomerInfo *models.CustomerInfo `json:"customerInfo"`
}

type orderRequest struct {
	OrderID       string               `json:"orderId"`
	Items         []models.OrderLine   `json:"items"`
	TotalAmount   *float64             `json:"totalAmount"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
}

// statusCode maps the manager's error kinds onto HTTP.
func statusCode(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// customerMessage is what a customer sees instead of the raw error.
func customerMessage(err error) string {
	var te *services.TableError
	errors.As(err, &te)

	switch {
	case errors.Is(err, services.ErrNotFound):
		return "table not found"
	case errors.Is(err, services.ErrForbidden):
		return "this table is held by another customer"
	case errors.Is(err, services.ErrAlreadySeated):
		return "you already have a table"
	case errors.Is(err, services.ErrConflict):
		if te != nil {
			switch te.Status {
			case models.TableOccupied:
				return "table already occupied"
			case models.TableReserved:
				return "table is reserved"
			case models.TableAvailable:
				return "table is not in use"
			}
		}
		return "table is not available right now"
	case errors.Is(err, services.ErrBadRequest):
		if te != nil && te.Reason != "" {
			return "invalid request: " + te.Reason
		}
		return "invalid request"
	default:
		return "service temporarily unavailable, please try again"
	}
}

func isStaff(c *gin.Context) bool {
	claims, ok := middlewares.ClaimsFrom(c)
	return ok && claims.IsStaff()
}

func (tc *TableController) fail(c *gin.Context, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if isStaff(c) {
		utils.RespondError(c, code, err)
		return
	}
	utils.RespondMessage(c, code, customerMessage(err))
}

func tableNumber(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n <= 0 {
		utils.RespondMessage(c, http.StatusBadRequest, "table number must be a positive integer")
		return 0, false
	}
	return n, true
}

// view hides other customers' details from a customer caller.
func view(c *gin.Context, t *models.Table) *models.Table {
	if t == nil || isStaff(c) {
		return t
	}
	claims, ok := middlewares.ClaimsFrom(c)
	if ok && t.CustomerInfo.SameEmail(claims.Email) {
		return t
	}
	out := t.Clone()
	out.CustomerInfo = nil
	out.CurrentOrder = nil
	out.OrderHistory = []models.OrderSummary{}
	return out
}

func viewAll(c *gin.Context, tables []models.Table) []*models.Table {
	out := make([]*models.Table, 0, len(tables))
	for i := range tables {
		out = append(out, view(c, &tables[i]))
	}
	return out
}

// GetAvailableTables -> daftar meja kosong (publik, tanpa data customer)
func (tc *TableController) GetAvailableTables(c *gin.Context) {
	tables, err := tc.Manager.ListAvailable(c.Request.Context())
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Available tables", viewAll(c, tables))
}

// GetAllTables -> menampilkan seluruh meja, bisa difilter location/minCapacity
func (tc *TableController) GetAllTables(c *gin.Context) {
	var filter services.TableFilter

	if loc := c.Query("location"); loc != "" {
		parsed, err := models.ParseLocation(loc)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		filter.Location = parsed
	}
	if minCap := c.Query("minCapacity"); minCap != "" {
		n, err := strconv.Atoi(minCap)
		if err != nil || n < 0 {
			utils.RespondMessage(c, http.StatusBadRequest, "minCapacity must be a non-negative integer")
			return
		}
		filter.MinCapacity = n
	}

	tables, err := tc.Manager.Filter(c.Request.Context(), filter)
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", viewAll(c, tables))
}

// GetTable -> detail 1 meja
func (tc *TableController) GetTable(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	table, err := tc.Manager.Get(c.Request.Context(), number)
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", view(c, table))
}

// GetMyTable -> meja milik customer yang sedang login
func (tc *TableController) GetMyTable(c *gin.Context) {
	table, err := tc.Manager.MyTable(c.Request.Context(), c.GetString(middlewares.CtxEmail))
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Your table", table)
}

// OccupyTable seats a customer. A customer occupying for themselves always
// gets the email from their token.
func (tc *TableController) OccupyTable(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	info, ok := tc.bindCustomer(c)
	if !ok {
		return
	}

	table, err := tc.Manager.Occupy(c.Request.Context(), number, info)
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table occupied", table)
}

// ReserveTable -> booking meja (status='reserved')
func (tc *TableController) ReserveTable(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	info, ok := tc.bindCustomer(c)
	if !ok {
		return
	}

	table, err := tc.Manager.Reserve(c.Request.Context(), number, info)
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table reserved", table)
}

func (tc *TableController) bindCustomer(c *gin.Context) (*models.CustomerInfo, bool) {
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondMessage(c, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if req.CustomerInfo == nil {
		req.CustomerInfo = &models.CustomerInfo{}
	}
	if !isStaff(c) {
		req.CustomerInfo.Email = c.GetString(middlewares.CtxEmail)
	}
	return req.CustomerInfo, true
}

// CheckInTable -> customer reserved datang, meja jadi 'occupied'
func (tc *TableController) CheckInTable(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	table, err := tc.Manager.CheckIn(c.Request.Context(), number)
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation checked in", table)
}

// FreeTable -> staff mengosongkan meja
func (tc *TableController) FreeTable(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	table, err := tc.Manager.Free(c.Request.Context(), number)
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table freed", table)
}

// ReturnTable -> customer mengembalikan mejanya sendiri
func (tc *TableController) ReturnTable(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	table, err := tc.Manager.ReturnTable(c.Request.Context(), number, c.GetString(middlewares.CtxEmail))
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table returned", table)
}

// AttachOrder -> menempelkan order ke meja yang occupied
func (tc *TableController) AttachOrder(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table, err := tc.Manager.AttachOrder(c.Request.Context(), number, services.OrderRequest{
		OrderID:       req.OrderID,
		Items:         req.Items,
		TotalAmount:   req.TotalAmount,
		PaymentStatus: req.PaymentStatus,
	})
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order attached", table)
}

// UpdateTableStatus -> update status meja (PATCH|PUT /tables/:number)
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	number, ok := tableNumber(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	status := models.TableStatus(strings.ToLower(strings.TrimSpace(string(req.Status))))
	table, err := tc.Manager.UpdateStatus(c.Request.Context(), number, status, req.CustomerInfo)
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table status updated", table)
}

// ResetTables -> Admin mengosongkan semua meja
func (tc *TableController) ResetTables(c *gin.Context) {
	tables, err := tc.Manager.ResetAll(c.Request.Context())
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Tables reset to defaults", tables)
}

// GetStats -> jumlah meja per status
func (tc *TableController) GetStats(c *gin.Context) {
	stats, err := tc.Manager.Stats(c.Request.Context())
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table stats", stats)
}

// LookupTable resolves a table by internal id. The response carries the
// id, which the regular table JSON leaves out.
func (tc *TableController) LookupTable(c *gin.Context) {
	table, err := tc.Manager.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		tc.fail(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", gin.H{
		"id":    table.ID,
		"table": table,
	})
}
