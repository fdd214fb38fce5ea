package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shop-admin/internal/ai"
	"shop-admin/internal/core"
	"shop-admin/internal/drafts"
	"shop-admin/internal/events"
	"shop-admin/internal/logger"
	"shop-admin/internal/metrics"
)

const maxConversationLength = 20000

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies wires the application service. Extractor may be nil, which
// disables AI order intake. Events, Metrics and Logger default to no-ops.
type Dependencies struct {
	DB        Pinger
	Inventory core.InventoryService
	Orders    core.OrderService
	Extractor ai.OrderExtractor
	Drafts    drafts.Store
	Events    events.Publisher
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

type appService struct {
	db        Pinger
	inventory core.InventoryService
	orders    core.OrderService
	extractor ai.OrderExtractor
	drafts    drafts.Store
	events    events.Publisher
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(deps Dependencies) ApplicationService {
	s := &appService{
		db:        deps.DB,
		inventory: deps.Inventory,
		orders:    deps.Orders,
		extractor: deps.Extractor,
		drafts:    deps.Drafts,
		events:    deps.Events,
		metrics:   deps.Metrics,
		log:       deps.Logger,
	}
	if s.events == nil {
		s.events = events.Noop{}
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.drafts == nil {
		s.drafts = drafts.NewMemoryStore(15 * time.Minute)
	}
	return s
}

func (s *appService) Health(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Ping(ctx)
}

// ── Products ──────────────────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context) (*ProductListResult, error) {
	products, err := s.inventory.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) ListDeletedProducts(ctx context.Context) (*ProductListResult, error) {
	products, err := s.inventory.ListDeletedProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) GetProduct(ctx context.Context, id int) (*core.Product, error) {
	return s.inventory.GetProduct(ctx, id)
}

func (s *appService) CreateProduct(ctx context.Context, in core.ProductInput) (*core.Product, error) {
	p, err := s.inventory.CreateProduct(ctx, in)
	if err = s.finish(ctx, "create_product", err); err != nil {
		return nil, err
	}
	s.metrics.StockAdded(p.Quantity)
	s.log.Info(s.log.WithFields(ctx, map[string]any{"product_id": p.ID, "quantity": p.Quantity}), "product created")
	return p, nil
}

func (s *appService) UpdateProduct(ctx context.Context, id int, in core.ProductInput) (*ProductUpdateResult, error) {
	before, err := s.inventory.GetProduct(ctx, id)
	if err != nil {
		return nil, s.finish(ctx, "update_product", err)
	}
	p, changed, err := s.inventory.UpdateProduct(ctx, id, in)
	if err = s.finish(ctx, "update_product", err); err != nil {
		return nil, err
	}
	// quantity edits bypass orders, so count them as manual stock movement
	if delta := p.Quantity - before.Quantity; delta > 0 {
		s.metrics.StockAdded(delta)
	} else if delta < 0 {
		s.metrics.StockRemoved(-delta)
	}
	if len(changed) > 0 {
		s.log.Info(s.log.WithFields(ctx, map[string]any{
			"product_id": id,
			"changed":    strings.Join(changed, ","),
		}), "product updated")
	}
	return &ProductUpdateResult{Product: p, Changed: changed}, nil
}

func (s *appService) SoftDeleteProduct(ctx context.Context, id int) error {
	err := s.finish(ctx, "soft_delete_product", s.inventory.SoftDeleteProduct(ctx, id))
	if err == nil {
		s.log.Info(s.log.WithField(ctx, "product_id", id), "product soft-deleted")
	}
	return err
}

func (s *appService) RestoreProduct(ctx context.Context, id int) (*core.Product, error) {
	p, err := s.inventory.RestoreProduct(ctx, id)
	if err = s.finish(ctx, "restore_product", err); err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithField(ctx, "product_id", id), "product restored")
	return p, nil
}

func (s *appService) PermanentlyDeleteProduct(ctx context.Context, id int) error {
	err := s.finish(ctx, "purge_product", s.inventory.PermanentlyDeleteProduct(ctx, id))
	if err == nil {
		s.log.Info(s.log.WithField(ctx, "product_id", id), "product permanently deleted")
	}
	return err
}

func (s *appService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.Product, error) {
	p, err := s.inventory.AdjustStock(ctx, req.ProductID, req.ReduceBy, req.Note)
	if err = s.finish(ctx, "adjust_stock", err); err != nil {
		return nil, err
	}
	s.metrics.StockRemoved(req.ReduceBy)
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"product_id": p.ID,
		"reduce_by":  req.ReduceBy,
		"quantity":   p.Quantity,
	}), "stock adjusted")
	return p, nil
}

func (s *appService) ListProductHistory(ctx context.Context, id int) (*HistoryResult, error) {
	entries, err := s.inventory.ListProductHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	return &HistoryResult{ProductID: id, Entries: entries}, nil
}

// ── Orders ────────────────────────────────────────────────────────────────────

func (s *appService) ListOrders(ctx context.Context, status *string) (*OrderListResult, error) {
	var filter *core.OrderStatus
	label := ""
	if status != nil && strings.TrimSpace(*status) != "" {
		st, err := core.ParseOrderStatus(*status)
		if err != nil {
			return nil, err
		}
		filter = &st
		label = string(st)
	}
	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders, Status: label}, nil
}

func (s *appService) GetOrder(ctx context.Context, id int) (*OrderResult, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	order, err := s.orders.CreateOrder(ctx, req.Customer, req.Items)
	if err = s.finish(ctx, "create_order", err); err != nil {
		return nil, err
	}
	s.metrics.StockRemoved(unitsOf(order))
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"order_id": order.ID,
		"items":    len(order.Items),
		"total":    order.TotalPrice.StringFixed(2),
	}), "order created")
	s.publish(ctx, order, events.OrderCreated, "")
	return &OrderResult{Order: order}, nil
}

func (s *appService) UpdateOrder(ctx context.Context, id int, req UpdateOrderRequest) (*OrderResult, error) {
	var status *core.OrderStatus
	if req.Status != nil {
		st, err := core.ParseOrderStatus(*req.Status)
		if err != nil {
			return nil, s.finish(ctx, "update_order", err)
		}
		status = &st
	}
	order, err := s.orders.UpdateOrderFields(ctx, id, req.Customer, status)
	if err = s.finish(ctx, "update_order", err); err != nil {
		return nil, err
	}
	s.log.Info(s.log.WithField(ctx, "order_id", id), "order updated")
	s.publish(ctx, order, events.OrderUpdated, order.PreviousStatus)
	s.statusChanged(ctx, order)
	return &OrderResult{Order: order}, nil
}

func (s *appService) SetOrderStatus(ctx context.Context, id int, status string) (*OrderResult, error) {
	st, err := core.ParseOrderStatus(status)
	if err != nil {
		return nil, s.finish(ctx, "set_order_status", err)
	}
	order, err := s.orders.SetOrderStatus(ctx, id, st)
	if err = s.finish(ctx, "set_order_status", err); err != nil {
		return nil, err
	}
	s.statusChanged(ctx, order)
	return &OrderResult{Order: order}, nil
}

// statusChanged records the stock effect of a transition that already
// committed. Orders without PreviousStatus did not change status.
func (s *appService) statusChanged(ctx context.Context, order *core.Order) {
	prev := order.PreviousStatus
	if prev == "" || prev == order.Status {
		return
	}
	switch {
	case order.Status == core.StatusCancelled:
		s.metrics.StockAdded(unitsOf(order))
	case prev == core.StatusCancelled:
		s.metrics.StockRemoved(unitsOf(order))
	}
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"order_id": order.ID,
		"from":     string(prev),
		"to":       string(order.Status),
	}), "order status changed")
	s.publish(ctx, order, events.OrderStatusChanged, prev)
}

func (s *appService) DeleteOrder(ctx context.Context, id int) error {
	order, err := s.orders.DeleteOrder(ctx, id)
	if err = s.finish(ctx, "delete_order", err); err != nil {
		return err
	}
	if order.Status != core.StatusCancelled {
		s.metrics.StockAdded(unitsOf(order))
	}
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"order_id": id,
		"status":   string(order.Status),
	}), "order deleted")
	s.publish(ctx, order, events.OrderDeleted, "")
	return nil
}

// publish runs after commit. A broker failure is logged and otherwise ignored.
func (s *appService) publish(ctx context.Context, order *core.Order, typ events.EventType, old core.OrderStatus) {
	e := events.OrderEvent{
		OrderID:    order.ID,
		Type:       typ,
		Status:     string(order.Status),
		OldStatus:  string(old),
		Total:      order.TotalPrice,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.PublishOrderEvent(context.WithoutCancel(ctx), e); err != nil {
		s.log.Error(s.log.WithFields(ctx, map[string]any{
			"order_id":    order.ID,
			"routing_key": e.RoutingKey(),
		}), "failed to publish order event", err)
	}
}

func unitsOf(order *core.Order) int {
	n := 0
	for _, it := range order.Items {
		n += it.Quantity
	}
	return n
}

// ── AI order intake ───────────────────────────────────────────────────────────

func (s *appService) ExtractOrderDraft(ctx context.Context, conversation string) (*DraftResult, error) {
	if s.extractor == nil {
		return nil, ErrExtractionDisabled
	}
	conversation = strings.TrimSpace(conversation)
	if conversation == "" {
		return nil, &core.ValidationError{Field: "conversation", Message: "is required"}
	}
	if len(conversation) > maxConversationLength {
		return nil, &core.ValidationError{
			Field:   "conversation",
			Message: fmt.Sprintf("must be at most %d characters", maxConversationLength),
		}
	}

	catalog, err := s.inventory.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	draft, err := s.extractor.ExtractOrder(ctx, conversation, catalog)
	if err = s.finish(ctx, "extract_order", err); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to encode draft: %w", err)
	}
	d := drafts.Draft{Token: uuid.NewString(), Payload: payload, CreatedAt: time.Now()}
	if err := s.drafts.Put(ctx, d); err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"draft":      d.Token,
		"items":      len(draft.Items),
		"confidence": draft.Confidence,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}), "order draft extracted")
	return &DraftResult{Token: d.Token, CreatedAt: d.CreatedAt, Draft: draft}, nil
}

func (s *appService) GetDraft(ctx context.Context, token string) (*DraftResult, error) {
	d, err := s.drafts.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	return decodeDraft(d)
}

func (s *appService) ConfirmDraft(ctx context.Context, token string, req *CreateOrderRequest) (*OrderResult, error) {
	d, err := s.drafts.Take(ctx, token)
	if err != nil {
		return nil, err
	}

	if req == nil {
		res, err := decodeDraft(d)
		if err != nil {
			s.restoreDraft(ctx, d)
			return nil, err
		}
		customer, items, err := res.Draft.OrderInput()
		if err != nil {
			s.restoreDraft(ctx, d)
			return nil, &core.ValidationError{Field: "items", Message: err.Error()}
		}
		req = &CreateOrderRequest{Customer: customer, Items: items}
	}

	result, err := s.CreateOrder(ctx, *req)
	if err != nil {
		// the operator can fix the payload and confirm again
		s.restoreDraft(ctx, d)
		return nil, err
	}
	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"draft":    token,
		"order_id": result.Order.ID,
	}), "order draft confirmed")
	return result, nil
}

func (s *appService) restoreDraft(ctx context.Context, d drafts.Draft) {
	if err := s.drafts.Put(context.WithoutCancel(ctx), d); err != nil {
		s.log.Error(s.log.WithField(ctx, "draft", d.Token), "failed to restore draft", err)
	}
}

func (s *appService) DiscardDraft(ctx context.Context, token string) error {
	return s.drafts.Delete(ctx, token)
}

func decodeDraft(d drafts.Draft) (*DraftResult, error) {
	var draft ai.OrderDraft
	if err := json.Unmarshal(d.Payload, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft %s: %w", d.Token, err)
	}
	return &DraftResult{Token: d.Token, CreatedAt: d.CreatedAt, Draft: &draft}, nil
}

// finish records the outcome of a mutating operation. Domain rejections are
// logged as warnings, store failures as errors.
func (s *appService) finish(ctx context.Context, op string, err error) error {
	s.metrics.RecordOperation(op, err)
	if err == nil {
		return nil
	}
	ctx = s.log.WithField(ctx, "operation", op)
	if IsDomainError(err) {
		s.log.Warn(s.log.WithField(ctx, "reason", err.Error()), "operation rejected")
	} else {
		s.log.Error(ctx, "operation failed", err)
	}
	return err
}

// IsDomainError reports whether err is a rejection the caller can act on, as
// opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	var (
		verr  *core.ValidationError
		nferr *core.NotFoundError
		serr  *core.InsufficientStockError
		cerr  *core.ConflictError
	)
	return errors.As(err, &verr) || errors.As(err, &nferr) || errors.As(err, &serr) ||
		errors.As(err, &cerr) || errors.Is(err, drafts.ErrNotFound) || errors.Is(err, ErrExtractionDisabled)
}
