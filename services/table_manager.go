package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-service/events"
	"github.com/yeremiapane/table-service/models"
	"github.com/yeremiapane/table-service/storage"
	"github.com/yeremiapane/table-service/utils"
)

const (
	opList         = "list"
	opGet          = "get"
	opOccupy       = "occupy"
	opReserve      = "reserve"
	opCheckIn      = "check-in"
	opFree         = "free"
	opReturn       = "return"
	opAttachOrder  = "attach order"
	opUpdateStatus = "update status"
	opReset        = "reset"
)

// EventEmitter receives every committed transition. Emit must not block.
type EventEmitter interface {
	Emit(e events.Event)
}

// TableManager owns the table state machine. Every mutation of one table
// number runs read, compute and write as one serialized step, and the store
// write is a version compare-and-swap, so concurrent callers can neither
// double-occupy a table nor drop an order.
type TableManager struct {
	store      storage.TableStore
	serializer Serializer
	locker     Locker
	emitter    EventEmitter
	maxRetries int
	now        func() time.Time
	newOrderID func() string

	// Mutations hold the read side; ResetAll takes the write side.
	resetMu sync.RWMutex
	// bindMu covers the one-table-per-customer check in Occupy and Reserve.
	bindMu sync.Mutex
}

type Option func(*TableManager)

func WithSerializer(s Serializer) Option {
	return func(m *TableManager) { m.serializer = s }
}

// WithLocker adds a cross-instance lock around each mutation.
func WithLocker(l Locker) Option {
	return func(m *TableManager) { m.locker = l }
}

func WithEvents(e EventEmitter) Option {
	return func(m *TableManager) { m.emitter = e }
}

// WithMaxRetries bounds how often a mutation is recomputed after a version
// conflict before it fails with ErrConflict.
func WithMaxRetries(n int) Option {
	return func(m *TableManager) {
		if n >= 0 {
			m.maxRetries = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *TableManager) { m.now = now }
}

func NewTableManager(store storage.TableStore, opts ...Option) *TableManager {
	m := &TableManager{
		store:      store,
		serializer: NewMutexSerializer(),
		maxRetries: 3,
		now:        func() time.Time { return time.Now().UTC() },
		newOrderID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (m *TableManager) List(ctx context.Context) ([]models.Table, error) {
	m.resetMu.RLock()
	defer m.resetMu.RUnlock()

	tables, err := m.store.GetAll(ctx)
	if err != nil {
		return nil, m.storeError(opList, 0, err)
	}
	return tables, nil
}

// TableFilter narrows List. Zero fields match everything.
type TableFilter struct {
	Location    models.TableLocation
	MinCapacity int
	Status      models.TableStatus
}

func (f TableFilter) Match(t *models.Table) bool {
	if f.Location != "" && t.Location != f.Location {
		return false
	}
	if f.MinCapacity > 0 && t.Capacity < f.MinCapacity {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

func (m *TableManager) Filter(ctx context.Context, f TableFilter) ([]models.Table, error) {
	tables, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Table, 0, len(tables))
	for i := range tables {
		if f.Match(&tables[i]) {
			out = append(out, tables[i])
		}
	}
	return out, nil
}

func (m *TableManager) FilterByLocation(ctx context.Context, loc models.TableLocation) ([]models.Table, error) {
	return m.Filter(ctx, TableFilter{Location: loc})
}

func (m *TableManager) FilterByMinCapacity(ctx context.Context, n int) ([]models.Table, error) {
	return m.Filter(ctx, TableFilter{MinCapacity: n})
}

func (m *TableManager) ListAvailable(ctx context.Context) ([]models.Table, error) {
	return m.Filter(ctx, TableFilter{Status: models.TableAvailable})
}

func (m *TableManager) Get(ctx context.Context, number int) (*models.Table, error) {
	if number <= 0 {
		return nil, invalidNumber(opGet, number)
	}

	m.resetMu.RLock()
	defer m.resetMu.RUnlock()

	t, err := m.store.GetByNumber(ctx, number)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &TableError{Op: opGet, Number: number, Kind: ErrNotFound}
	}
	if err != nil {
		return nil, m.storeError(opGet, number, err)
	}
	return t, nil
}

// GetByID resolves a table by its storage id. Only admin tooling uses it;
// every mutation is keyed by number.
func (m *TableManager) GetByID(ctx context.Context, id string) (*models.Table, error) {
	m.resetMu.RLock()
	defer m.resetMu.RUnlock()

	t, err := m.store.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &TableError{Op: opGet, Kind: ErrNotFound, Reason: "no table with id " + id}
	}
	if err != nil {
		return nil, m.storeError(opGet, 0, err)
	}
	return t, nil
}

// MyTable returns the table currently bound to email.
func (m *TableManager) MyTable(ctx context.Context, email string) (*models.Table, error) {
	if strings.TrimSpace(email) == "" {
		return nil, &TableError{Op: opGet, Kind: ErrBadRequest, Reason: "email is required"}
	}
	tables, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tables {
		if tables[i].Status.Bound() && tables[i].CustomerInfo.SameEmail(email) {
			return &tables[i], nil
		}
	}
	return nil, &TableError{Op: opGet, Kind: ErrNotFound, Reason: "no table is bound to " + email}
}

type TableStats struct {
	Available int `json:"available"`
	Occupied  int `json:"occupied"`
	Reserved  int `json:"reserved"`
	Total     int `json:"total"`
}

func (m *TableManager) Stats(ctx context.Context) (TableStats, error) {
	var stats TableStats
	tables, err := m.List(ctx)
	if err != nil {
		return stats, err
	}
	for _, t := range tables {
		switch t.Status {
		case models.TableAvailable:
			stats.Available++
		case models.TableOccupied:
			stats.Occupied++
		case models.TableReserved:
			stats.Reserved++
		}
	}
	stats.Total = len(tables)
	return stats, nil
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

func (m *TableManager) Occupy(ctx context.Context, number int, info *models.CustomerInfo) (*models.Table, error) {
	if err := info.Validate(); err != nil {
		return nil, badRequest(opOccupy, number, err)
	}
	return m.bind(ctx, opOccupy, number, info, func(t *models.Table) (events.Type, error) {
		t.Status = models.TableOccupied
		t.CustomerInfo = copyInfo(info)
		t.CurrentOrder = nil
		return events.TableOccupied, nil
	})
}

func (m *TableManager) Reserve(ctx context.Context, number int, info *models.CustomerInfo) (*models.Table, error) {
	if err := info.Validate(); err != nil {
		return nil, badRequest(opReserve, number, err)
	}
	return m.bind(ctx, opReserve, number, info, func(t *models.Table) (events.Type, error) {
		t.Status = models.TableReserved
		t.CustomerInfo = copyInfo(info)
		return events.TableReserved, nil
	})
}

// bind runs apply on an available table for info. A customer with an email
// holds at most one table: binding them to a second one is a Conflict whose
// cause is ErrAlreadySeated. The check is local to this manager; instances
// sharing a store through the Redis locker do not coordinate it.
func (m *TableManager) bind(ctx context.Context, op string, number int, info *models.CustomerInfo, apply transition) (*models.Table, error) {
	email := strings.TrimSpace(info.Email)
	if email != "" {
		m.bindMu.Lock()
		defer m.bindMu.Unlock()
	}

	return m.mutate(ctx, op, number, func(t *models.Table) (events.Type, error) {
		if t.Status != models.TableAvailable {
			return "", reject(ErrConflict, "table is already %s", t.Status)
		}
		if email != "" {
			held, err := m.heldBy(ctx, email)
			if err != nil {
				return "", m.storeError(op, t.Number, err)
			}
			if held != 0 {
				return "", &rejection{kind: ErrConflict, reason: fmt.Sprintf("customer already holds table %d", held), cause: ErrAlreadySeated}
			}
		}
		return apply(t)
	})
}

// heldBy returns the number of the table bound to email, or 0.
func (m *TableManager) heldBy(ctx context.Context, email string) (int, error) {
	tables, err := m.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	for i := range tables {
		if tables[i].Status.Bound() && tables[i].CustomerInfo.SameEmail(email) {
			return tables[i].Number, nil
		}
	}
	return 0, nil
}

// CheckIn seats the customer holding a reservation.
func (m *TableManager) CheckIn(ctx context.Context, number int) (*models.Table, error) {
	return m.mutate(ctx, opCheckIn, number, func(t *models.Table) (events.Type, error) {
		if t.Status != models.TableReserved {
			return "", reject(ErrConflict, "only a reserved table can be checked in")
		}
		t.Status = models.TableOccupied
		t.CurrentOrder = nil
		return events.TableCheckedIn, nil
	})
}

func (m *TableManager) Free(ctx context.Context, number int) (*models.Table, error) {
	return m.mutate(ctx, opFree, number, freeTable)
}

// ReturnTable is the customer self-service free: it only succeeds for the
// customer the table is bound to.
func (m *TableManager) ReturnTable(ctx context.Context, number int, email string) (*models.Table, error) {
	return m.mutate(ctx, opReturn, number, func(t *models.Table) (events.Type, error) {
		if t.Status.Bound() && !t.CustomerInfo.SameEmail(email) {
			return "", reject(ErrForbidden, "table belongs to another customer")
		}
		return freeTable(t)
	})
}

func freeTable(t *models.Table) (events.Type, error) {
	if !t.Status.Bound() {
		return "", reject(ErrConflict, "table is already available")
	}
	if t.CurrentOrder != nil {
		t.OrderHistory = append(t.OrderHistory, *t.CurrentOrder)
	}
	t.CurrentOrder = nil
	t.CustomerInfo = nil
	t.Status = models.TableAvailable
	return events.TableFreed, nil
}

// OrderRequest is what checkout hands over when an order is placed at a
// table. OrderID is generated when empty; TotalAmount, when given, must
// match the items.
type OrderRequest struct {
	OrderID       string
	Items         []models.OrderLine
	TotalAmount   *float64
	PaymentStatus models.PaymentStatus
}

// AttachOrder makes the order current on an occupied table, archiving the
// previous current order first. An order id already seen on the table is
// rejected, so a retried attach cannot add the same order twice.
func (m *TableManager) AttachOrder(ctx context.Context, number int, req OrderRequest) (*models.Table, error) {
	summary, err := m.buildSummary(req)
	if err != nil {
		return nil, badRequest(opAttachOrder, number, err)
	}
	return m.mutate(ctx, opAttachOrder, number, func(t *models.Table) (events.Type, error) {
		if t.Status != models.TableOccupied {
			return "", reject(ErrConflict, "orders can only be attached to an occupied table")
		}
		if t.HasOrder(summary.OrderID) {
			return "", reject(ErrConflict, "order %s is already attached", summary.OrderID)
		}
		if t.CurrentOrder != nil {
			t.OrderHistory = append(t.OrderHistory, *t.CurrentOrder)
		}
		current := summary.Clone()
		t.CurrentOrder = &current
		return events.TableOrderAttached, nil
	})
}

func (m *TableManager) buildSummary(req OrderRequest) (models.OrderSummary, error) {
	summary := models.OrderSummary{
		OrderID:       strings.TrimSpace(req.OrderID),
		Items:         make([]models.OrderLine, 0, len(req.Items)),
		PaymentStatus: req.PaymentStatus,
		CreatedAt:     m.now(),
	}
	if summary.OrderID == "" {
		summary.OrderID = m.newOrderID()
	}
	if summary.PaymentStatus == "" {
		summary.PaymentStatus = models.PaymentPending
	}
	for _, l := range req.Items {
		if l.LineStatus == "" {
			l.LineStatus = models.PaymentPending
		}
		summary.Items = append(summary.Items, l)
	}

	for _, l := range summary.Items {
		if !models.FiniteAmount(l.UnitPrice) {
			return summary, errors.New("unit price must be a finite number")
		}
	}
	if req.TotalAmount != nil && !models.FiniteAmount(*req.TotalAmount) {
		return summary, errors.New("total amount must be a finite number")
	}

	summary.TotalAmount = summary.ComputeTotal()
	if req.TotalAmount != nil && !models.SameAmount(*req.TotalAmount, summary.TotalAmount) {
		return summary, errors.New("total amount does not match the sum of the items")
	}
	return summary, summary.Validate()
}

// UpdateStatus moves a table to status, dispatching to Occupy, Reserve or
// Free. info is required for occupied and reserved.
func (m *TableManager) UpdateStatus(ctx context.Context, number int, status models.TableStatus, info *models.CustomerInfo) (*models.Table, error) {
	if number <= 0 {
		return nil, invalidNumber(opUpdateStatus, number)
	}
	switch status {
	case models.TableAvailable:
		return m.Free(ctx, number)
	case models.TableOccupied, models.TableReserved:
		if err := info.Validate(); err != nil {
			return nil, badRequest(opUpdateStatus, number, err)
		}
		if status == models.TableOccupied {
			return m.Occupy(ctx, number, info)
		}
		return m.Reserve(ctx, number, info)
	default:
		return nil, &TableError{Op: opUpdateStatus, Number: number, Kind: ErrBadRequest, Reason: "unknown status " + string(status)}
	}
}

// ResetAll restores the seeded floor plan. No mutation interleaves with it.
func (m *TableManager) ResetAll(ctx context.Context) ([]models.Table, error) {
	m.resetMu.Lock()
	defer m.resetMu.Unlock()

	if err := m.store.ResetAll(ctx); err != nil {
		return nil, m.storeError(opReset, 0, err)
	}
	tables, err := m.store.GetAll(ctx)
	if err != nil {
		return nil, m.storeError(opReset, 0, err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{"op": opReset, "tables": len(tables)}).Info("Tables reset to defaults")
	if m.emitter != nil {
		m.emitter.Emit(events.Event{Type: events.TablesReset, OccurredAt: m.now()})
	}
	return tables, nil
}

type transition func(t *models.Table) (events.Type, error)

func (m *TableManager) mutate(ctx context.Context, op string, number int, apply transition) (*models.Table, error) {
	if number <= 0 {
		return nil, invalidNumber(op, number)
	}

	m.resetMu.RLock()
	defer m.resetMu.RUnlock()

	var result *models.Table
	err := m.serializer.Do(ctx, number, func() error {
		if m.locker != nil {
			unlock, err := m.locker.Lock(ctx, number)
			if err != nil {
				return m.storeError(op, number, err)
			}
			defer unlock()
		}

		for attempt := 0; ; attempt++ {
			current, err := m.store.GetByNumber(ctx, number)
			if errors.Is(err, storage.ErrNotFound) {
				return &TableError{Op: op, Number: number, Kind: ErrNotFound}
			}
			if err != nil {
				return m.storeError(op, number, err)
			}

			next := current.Clone()
			evType, err := apply(next)
			if err != nil {
				return rejected(op, current, err)
			}
			if err := next.CheckInvariants(); err != nil {
				return &TableError{Op: op, Number: number, Status: current.Status, Kind: ErrConflict, Reason: err.Error()}
			}

			err = m.store.Save(ctx, next)
			if errors.Is(err, storage.ErrVersionConflict) {
				if attempt < m.maxRetries {
					utils.InfoLogger.WithFields(logrus.Fields{"table": number, "op": op, "attempt": attempt + 1}).
						Debug("Table changed underneath, recomputing")
					continue
				}
				return &TableError{Op: op, Number: number, Status: current.Status, Kind: ErrConflict, Reason: "table was modified concurrently"}
			}
			if err != nil {
				return m.storeError(op, number, err)
			}

			utils.InfoLogger.WithFields(logrus.Fields{
				"table": number,
				"op":    op,
				"from":  current.Status,
				"to":    next.Status,
			}).Info("Table transition")
			m.emit(evType, next)
			result = next
			return nil
		}
	})
	if err != nil {
		var te *TableError
		if !errors.As(err, &te) {
			err = &TableError{Op: op, Number: number, Kind: ErrStoreUnavailable, Cause: err}
		}
		return nil, err
	}
	return result, nil
}

func (m *TableManager) emit(t events.Type, table *models.Table) {
	if m.emitter == nil {
		return
	}
	m.emitter.Emit(events.Event{
		Type:        t,
		TableNumber: table.Number,
		Status:      table.Status,
		OccurredAt:  m.now(),
		Table:       table.Clone(),
	})
}

func (m *TableManager) storeError(op string, number int, err error) error {
	logError(op, number, err)
	return &TableError{Op: op, Number: number, Kind: ErrStoreUnavailable, Cause: err}
}

func logError(op string, number int, err error) {
	utils.ErrorLogger.WithFields(logrus.Fields{"table": number, "op": op}).Error(err)
}

func rejected(op string, current *models.Table, err error) error {
	var te *TableError
	if errors.As(err, &te) {
		return te
	}
	var r *rejection
	if errors.As(err, &r) {
		return &TableError{Op: op, Number: current.Number, Status: current.Status, Kind: r.kind, Reason: r.reason, Cause: r.cause}
	}
	return &TableError{Op: op, Number: current.Number, Status: current.Status, Kind: ErrConflict, Reason: err.Error()}
}

func badRequest(op string, number int, err error) error {
	return &TableError{Op: op, Number: number, Kind: ErrBadRequest, Reason: err.Error()}
}

func invalidNumber(op string, number int) error {
	return &TableError{Op: op, Number: number, Kind: ErrBadRequest, Reason: "table number must be a positive integer"}
}

func copyInfo(info *models.CustomerInfo) *models.CustomerInfo {
	c := *info
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	return &c
}
