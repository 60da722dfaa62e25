package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/collectivehq/funding-flow/internal/domain/flow"
	"github.com/collectivehq/funding-flow/internal/models"
)

// ErrFlowNotFound is returned when no contribution flow exists for an ID
var ErrFlowNotFound = errors.New("contribution flow not found")

// OrderRepository persists completed contribution orders
type OrderRepository interface {
	Create(tx *sql.Tx, order *models.Order) error
	GetByOrderID(orderID string) (*models.Order, error)
	List() ([]*models.Order, error)
}

// ContributionService owns the active contribution flows. Each flow is an
// in-memory wizard controller keyed by a server-generated ID; the database
// only ever sees completed orders.
type ContributionService struct {
	mu        sync.RWMutex
	flows     map[string]*flow.Controller
	orderRepo OrderRepository
	processor flow.Processor
	logger    *zap.Logger
}

// NewContributionService creates a contribution service
func NewContributionService(orderRepo OrderRepository, processor flow.Processor, logger *zap.Logger) *ContributionService {
	return &ContributionService{
		flows:     make(map[string]*flow.Controller),
		orderRepo: orderRepo,
		processor: processor,
		logger:    logger,
	}
}

// CreateFlow starts a new contribution flow and returns its ID
func (s *ContributionService) CreateFlow() (string, flow.Snapshot) {
	id := uuid.New().String()
	ctrl := flow.NewController()

	s.mu.Lock()
	s.flows[id] = ctrl
	s.mu.Unlock()

	s.logger.Info("Contribution flow created", zap.String("flow_id", id))
	return id, ctrl.Snapshot()
}

// Snapshot returns the current state of a flow
func (s *ContributionService) Snapshot(flowID string) (flow.Snapshot, error) {
	ctrl, err := s.controller(flowID)
	if err != nil {
		return flow.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// SetProfile updates the flow's profile step data
func (s *ContributionService) SetProfile(flowID string, p flow.Profile) (flow.Snapshot, error) {
	ctrl, err := s.controller(flowID)
	if err != nil {
		return flow.Snapshot{}, err
	}
	if err := ctrl.SetProfile(p); err != nil {
		return flow.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// SetDetails updates the flow's details step data
func (s *ContributionService) SetDetails(flowID string, d flow.Details) (flow.Snapshot, error) {
	ctrl, err := s.controller(flowID)
	if err != nil {
		return flow.Snapshot{}, err
	}
	if err := ctrl.SetDetails(d); err != nil {
		return flow.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// SetPayment updates the flow's payment step data
func (s *ContributionService) SetPayment(flowID string, p flow.Payment) (flow.Snapshot, error) {
	ctrl, err := s.controller(flowID)
	if err != nil {
		return flow.Snapshot{}, err
	}
	if err := ctrl.SetPayment(p); err != nil {
		return flow.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// SetSummary updates the flow's summary step data
func (s *ContributionService) SetSummary(flowID string, sm flow.Summary) (flow.Snapshot, error) {
	ctrl, err := s.controller(flowID)
	if err != nil {
		return flow.Snapshot{}, err
	}
	if err := ctrl.SetSummary(sm); err != nil {
		return flow.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// GoToStep navigates the flow to a previously visited step index
func (s *ContributionService) GoToStep(flowID string, target int) (flow.Snapshot, error) {
	ctrl, err := s.controller(flowID)
	if err != nil {
		return flow.Snapshot{}, err
	}
	if err := ctrl.GoToStep(target); err != nil {
		return flow.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// Advance validates the current step and moves the flow forward
func (s *ContributionService) Advance(flowID string) (flow.Snapshot, error) {
	ctrl, err := s.controller(flowID)
	if err != nil {
		return flow.Snapshot{}, err
	}
	if err := ctrl.Advance(); err != nil {
		return ctrl.Snapshot(), err
	}
	return ctrl.Snapshot(), nil
}

// Submit charges the flow's order through the payment processor and, on
// success, persists the completed order.
func (s *ContributionService) Submit(ctx context.Context, flowID string) (*models.Order, error) {
	ctrl, err := s.controller(flowID)
	if err != nil {
		return nil, err
	}

	receipt, err := ctrl.Submit(ctx, s.processor)
	if err != nil {
		s.logger.Warn("Contribution submit failed",
			zap.String("flow_id", flowID),
			zap.Error(err))
		return nil, err
	}

	details := ctrl.Details()
	profile := ctrl.Profile()
	payment := ctrl.Payment()
	summary := ctrl.Summary()

	quantity := details.Quantity
	if quantity < 1 {
		quantity = 1
	}

	order := &models.Order{
		OrderID:          uuid.New().String(),
		TransactionID:    receipt.TransactionID,
		PayerName:        profile.Name,
		PayerEmail:       profile.Email,
		IsGuest:          profile.IsGuest,
		AmountCents:      details.AmountCents,
		PlatformTipCents: details.PlatformTipCents,
		TaxCents:         summary.TaxCents,
		TotalCents:       flow.ComputeTotal(details, summary),
		Currency:         details.Currency,
		Quantity:         quantity,
		Interval:         details.Interval,
		PaymentMethodID:  payment.MethodID,
		CountryISO:       summary.CountryISO,
	}

	if err := s.orderRepo.Create(nil, order); err != nil {
		// The charge went through. Keep the flow submitted and surface
		// the persistence failure; the transaction ID is in the logs
		// for reconciliation.
		s.logger.Error("Failed to persist order after successful charge",
			zap.String("flow_id", flowID),
			zap.String("transaction_id", receipt.TransactionID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Contribution completed",
		zap.String("flow_id", flowID),
		zap.String("order_id", order.OrderID),
		zap.Int64("total_cents", order.TotalCents),
		zap.String("currency", order.Currency))
	return order, nil
}

// Orders lists all completed orders
func (s *ContributionService) Orders() ([]*models.Order, error) {
	return s.orderRepo.List()
}

func (s *ContributionService) controller(flowID string) (*flow.Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctrl, ok := s.flows[flowID]
	if !ok {
		return nil, ErrFlowNotFound
	}
	return ctrl, nil
}
