package transaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/AFrenchWrench/ustat-orders/internal/entity"
	"github.com/AFrenchWrench/ustat-orders/internal/payplan"
	"github.com/AFrenchWrench/ustat-orders/internal/reconcile"
	orderrepo "github.com/AFrenchWrench/ustat-orders/internal/repository/order"
	repo "github.com/AFrenchWrench/ustat-orders/internal/repository/transaction"
	ordersvc "github.com/AFrenchWrench/ustat-orders/internal/service/order"
	"github.com/AFrenchWrench/ustat-orders/internal/storage"
	"github.com/AFrenchWrench/ustat-orders/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/AFrenchWrench/ustat-orders/service/transaction")

// Service owns the payment transaction aggregate: plan generation, the
// transaction state machine, proof attachment, and the reconciliation of
// order status with transaction state. Reconciliation always runs inside
// the same database transaction as the mutation that triggered it.
type Service struct {
	orders       *orderrepo.Repository
	transactions *repo.Repository
	orderService *ordersvc.Service
	proofs       storage.ProofStore
	logger       *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders       *orderrepo.Repository
	Transactions *repo.Repository
	OrderService *ordersvc.Service
	Proofs       storage.ProofStore
	Logger       *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		orders:       p.Orders,
		transactions: p.Transactions,
		orderService: p.OrderService,
		proofs:       p.Proofs,
		logger:       p.Logger,
	}
}

// ReissueInput carries an administrative replacement transaction for a
// plan with a cancelled instalment.
type ReissueInput struct {
	OrderID int64
	Title   string
	Amount  int64
	DueDate time.Time
	IsCheck bool
}

// GeneratePlan expands the payment selection into transactions and moves
// the order from Approved to AwaitingPayment, atomically. A repeat call
// for an order that already holds a live plan returns the existing
// transactions unchanged; the bool result reports whether a new plan was
// actually created.
func (s *Service) GeneratePlan(ctx context.Context, orderID int64, sel payplan.Selection) ([]*entity.Transaction, bool, error) {
	ctx, span := serviceTracer.Start(ctx, "TransactionService.GeneratePlan", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int("plan.upfront", sel.UpfrontPercent),
		attribute.Int("plan.checks", sel.CheckCount),
	))
	defer span.End()

	if err := sel.Validate(); err != nil {
		return nil, false, err
	}

	var (
		result  []*entity.Transaction
		order   *entity.Order
		created bool
	)
	err := s.orders.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		loaded, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, orderrepo.ErrNotFound) {
				return errorbank.NotFound("order not found")
			}
			return errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
		order = loaded

		// Idempotent retry: a live plan means generation already ran,
		// so hand back the same set no matter how far the order has
		// moved since.
		if reconcile.PlanExists(order.Transactions) {
			result = order.Transactions
			return nil
		}

		if order.Status != entity.OrderApproved {
			return errorbank.InvalidTransition("payment plan requires an approved order",
				errorbank.WithDetail("status", order.Status.Token()))
		}

		now := time.Now().UTC()
		specs, err := payplan.Build(order.TotalPrice(), sel, now)
		if err != nil {
			// AmountMismatch aborts here; nothing has been persisted.
			return err
		}

		txs := make([]*entity.Transaction, 0, len(specs))
		for _, spec := range specs {
			txs = append(txs, &entity.Transaction{
				OrderID:   order.ID,
				Title:     spec.Title,
				Amount:    spec.Amount,
				Status:    entity.TransactionPending,
				IsCheck:   spec.IsCheck,
				DueDate:   spec.DueDate,
				CreatedAt: now,
			})
		}
		if err := s.transactions.InsertMany(ctx, tx, txs); err != nil {
			return errorbank.Internal("failed to persist payment plan", errorbank.WithCause(err))
		}

		order.Status = entity.OrderAwaitingPayment
		if err := s.orders.Update(ctx, tx, order, "status"); err != nil {
			return errorbank.Internal("failed to update order", errorbank.WithCause(err))
		}

		result = txs
		created = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan generation failed")
		return nil, false, err
	}

	s.orderService.InvalidateCache(ctx, order.ID)
	if created {
		s.logger.Info("payment plan generated",
			zap.Int64("order", order.ID),
			zap.Int("transactions", len(result)),
			zap.Int("upfront", sel.UpfrontPercent),
			zap.Int("checks", sel.CheckCount),
		)
		s.orderService.PublishStatusChanged(ctx, order, entity.OrderApproved)
	}
	return result, created, nil
}

// UpdateStatus drives the transaction state machine with a wire token and
// reconciles the parent order inside the same database transaction.
func (s *Service) UpdateStatus(ctx context.Context, id int64, token string) (*entity.Transaction, error) {
	ctx, span := serviceTracer.Start(ctx, "TransactionService.UpdateStatus", trace.WithAttributes(
		attribute.Int64("transaction.id", id),
		attribute.String("transaction.status", token),
	))
	defer span.End()

	target, err := entity.ParseTransactionStatus(token)
	if err != nil {
		return nil, errorbank.Validation("unknown transaction status", errorbank.WithDetail("status", token))
	}
	if target != entity.TransactionPaid && target != entity.TransactionCancelled {
		return nil, errorbank.Validation("transaction status must be paid or cancelled",
			errorbank.WithDetail("status", token))
	}

	var (
		txn        *entity.Transaction
		order      *entity.Order
		fromStatus entity.OrderStatus
		reconciled bool
	)
	err = s.orders.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		located, err := s.transactions.Get(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errorbank.NotFound("transaction not found")
			}
			return errorbank.Internal("failed to load transaction", errorbank.WithCause(err))
		}

		// Lock the parent order before mutating; the fresh read below
		// sees the transaction as it is under the lock.
		loaded, err := s.orders.GetForUpdate(ctx, tx, located.OrderID)
		if err != nil {
			return errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
		order = loaded
		fromStatus = order.Status

		txn = findTransaction(order.Transactions, id)
		if txn == nil {
			return errorbank.NotFound("transaction not found")
		}

		if !txn.Status.CanTransition(target) {
			return errorbank.InvalidTransition(
				fmt.Sprintf("transaction cannot move from %s to %s", txn.Status, target),
				errorbank.WithDetail("from", txn.Status.Token()),
				errorbank.WithDetail("to", target.Token()),
			)
		}
		if target == entity.TransactionPaid && txn.IsCheck && !txn.HasProof() {
			return errorbank.ProofRequired("cheque requires an uploaded proof before it can be paid")
		}

		txn.Status = target
		if err := s.transactions.Update(ctx, tx, txn, "status"); err != nil {
			return errorbank.Internal("failed to update transaction", errorbank.WithCause(err))
		}

		derived := reconcile.Derive(order.Status, order.TotalPrice(), order.Transactions)
		if derived != order.Status {
			order.Status = derived
			if err := s.orders.Update(ctx, tx, order, "status"); err != nil {
				return errorbank.Internal("failed to reconcile order", errorbank.WithCause(err))
			}
			reconciled = true
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status update failed")
		return nil, err
	}

	s.orderService.InvalidateCache(ctx, order.ID)
	if reconciled {
		s.logger.Info("order reconciled",
			zap.Int64("order", order.ID),
			zap.String("from", fromStatus.Token()),
			zap.String("to", order.Status.Token()),
		)
		s.orderService.PublishStatusChanged(ctx, order, fromStatus)
	}
	return txn, nil
}

// AttachProof stores the uploaded image and binds it to a pending
// transaction. The file lands in storage before the reference is bound;
// if binding fails the stored file is removed again, so the transaction
// never ends up with a dangling or partial proof.
func (s *Service) AttachProof(ctx context.Context, id int64, filename string, r io.Reader) (*entity.Transaction, error) {
	ctx, span := serviceTracer.Start(ctx, "TransactionService.AttachProof", trace.WithAttributes(attribute.Int64("transaction.id", id)))
	defer span.End()

	existing, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("transaction not found")
		}
		return nil, errorbank.Internal("failed to load transaction", errorbank.WithCause(err))
	}
	if existing.Status != entity.TransactionPending {
		return nil, errorbank.NotEditable("proof can only be attached while the transaction awaits payment",
			errorbank.WithDetail("status", existing.Status.Token()))
	}

	ref, err := s.proofs.Save(ctx, id, filename, r)
	if err != nil {
		return nil, errorbank.Validation("proof upload failed", errorbank.WithCause(err))
	}

	var (
		txn      *entity.Transaction
		previous string
	)
	err = s.orders.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.orders.GetForUpdate(ctx, tx, existing.OrderID); err != nil {
			return errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}

		loaded, err := s.transactions.Get(ctx, tx, id)
		if err != nil {
			return errorbank.Internal("failed to load transaction", errorbank.WithCause(err))
		}
		if loaded.Status != entity.TransactionPending {
			return errorbank.NotEditable("proof can only be attached while the transaction awaits payment",
				errorbank.WithDetail("status", loaded.Status.Token()))
		}

		previous = loaded.ProofRef
		loaded.ProofRef = ref
		if err := s.transactions.Update(ctx, tx, loaded, "proof_ref"); err != nil {
			return errorbank.Internal("failed to attach proof", errorbank.WithCause(err))
		}
		txn = loaded
		return nil
	})
	if err != nil {
		if removeErr := s.proofs.Remove(ctx, ref); removeErr != nil {
			s.logger.Warn("orphaned proof cleanup failed", zap.String("ref", ref), zap.Error(removeErr))
		}
		span.RecordError(err)
		return nil, err
	}

	if previous != "" && previous != ref {
		if err := s.proofs.Remove(ctx, previous); err != nil {
			s.logger.Warn("replaced proof cleanup failed", zap.String("ref", previous), zap.Error(err))
		}
	}

	s.orderService.InvalidateCache(ctx, existing.OrderID)
	return txn, nil
}

// Reissue adds an administrative replacement transaction to an order whose
// plan lost an instalment to cancellation. The owed total never shrinks:
// the live amounts after the insert may not exceed the order total.
func (s *Service) Reissue(ctx context.Context, input ReissueInput) (*entity.Transaction, error) {
	ctx, span := serviceTracer.Start(ctx, "TransactionService.Reissue", trace.WithAttributes(attribute.Int64("order.id", input.OrderID)))
	defer span.End()

	if input.Amount <= 0 {
		return nil, errorbank.Validation("amount must be positive", errorbank.WithDetail("amount", input.Amount))
	}
	if input.Title == "" {
		return nil, errorbank.Validation("title is required")
	}

	var txn *entity.Transaction
	err := s.orders.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		order, err := s.orders.GetForUpdate(ctx, tx, input.OrderID)
		if err != nil {
			if errors.Is(err, orderrepo.ErrNotFound) {
				return errorbank.NotFound("order not found")
			}
			return errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}

		if order.Status != entity.OrderAwaitingPayment {
			return errorbank.InvalidTransition("transactions can only be reissued while the order awaits payment",
				errorbank.WithDetail("status", order.Status.Token()))
		}

		total := order.TotalPrice()
		live := reconcile.ActiveTotal(order.Transactions)
		if live+input.Amount > total {
			return errorbank.Validation("reissued amount exceeds the outstanding order total",
				errorbank.WithDetail("outstanding", total-live),
				errorbank.WithDetail("amount", input.Amount))
		}

		now := time.Now().UTC()
		due := input.DueDate
		if due.IsZero() {
			due = now
		}
		txn = &entity.Transaction{
			OrderID:   order.ID,
			Title:     input.Title,
			Amount:    input.Amount,
			Status:    entity.TransactionPending,
			IsCheck:   input.IsCheck,
			DueDate:   due,
			CreatedAt: now,
		}
		return s.transactions.Insert(ctx, tx, txn)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.orderService.InvalidateCache(ctx, input.OrderID)
	return txn, nil
}

// Get fetches a single transaction.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Transaction, error) {
	txn, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("transaction not found")
		}
		return nil, errorbank.Internal("failed to load transaction", errorbank.WithCause(err))
	}
	return txn, nil
}

func findTransaction(txs []*entity.Transaction, id int64) *entity.Transaction {
	for _, tx := range txs {
		if tx.ID == id {
			return tx
		}
	}
	return nil
}
