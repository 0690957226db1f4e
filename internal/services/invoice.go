package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/invoice-dashboard/internal/cache"
	"github.com/diewo77/invoice-dashboard/internal/models"
	"github.com/diewo77/invoice-dashboard/internal/repository"
	"go.uber.org/zap"
)

// InvoicesPath is the invoice list view, revalidated after every mutation.
const InvoicesPath = "/dashboard/invoices"

// DefaultPageSize is the number of invoices per list page.
const DefaultPageSize = 6

// ErrStorage wraps any failure reported by the store.
var ErrStorage = errors.New("invoice storage failure")

// ErrorPolicy decides what create and update do with storage failures.
type ErrorPolicy string

const (
	// PolicyReport returns storage failures and skips revalidation and navigation.
	PolicyReport ErrorPolicy = "report"
	// PolicySwallow logs storage failures and carries on as if the write
	// succeeded. Delete and validation failures are always reported.
	PolicySwallow ErrorPolicy = "swallow"
)

// ParseErrorPolicy accepts "report", "swallow" or "" (report).
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case "", PolicyReport:
		return PolicyReport, nil
	case PolicySwallow:
		return PolicySwallow, nil
	default:
		return "", fmt.Errorf("unknown storage error policy %q", s)
	}
}

// Result describes what a mutation did and where the caller should go next.
type Result struct {
	InvoiceID    string
	RowsAffected int64
	Revalidated  []string
	// NextView is the path to navigate to; empty means stay on the current view.
	NextView string
	// Swallowed holds the storage error ignored under PolicySwallow.
	Swallowed error
}

// InvoiceService implements the invoice create, update and delete operations.
type InvoiceService struct {
	store       repository.InvoiceStore
	revalidator cache.Revalidator
	logger      *zap.Logger
	policy      ErrorPolicy
	now         func() time.Time
}

// Option configures an InvoiceService.
type Option func(*InvoiceService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *InvoiceService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithErrorPolicy(p ErrorPolicy) Option {
	return func(s *InvoiceService) { s.policy = p }
}

// WithClock overrides the time source used for the issue date.
func WithClock(now func() time.Time) Option {
	return func(s *InvoiceService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInvoiceService(store repository.InvoiceStore, revalidator cache.Revalidator, opts ...Option) *InvoiceService {
	s := &InvoiceService{
		store:       store,
		revalidator: revalidator,
		logger:      zap.NewNop(),
		policy:      PolicyReport,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("invoices")
	return s
}

// Policy returns the configured storage error policy.
func (s *InvoiceService) Policy() ErrorPolicy { return s.policy }

// Today returns the current UTC calendar date.
func (s *InvoiceService) Today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Create validates form, inserts a new invoice dated today and revalidates
// the invoice list.
func (s *InvoiceService) Create(ctx context.Context, form InvoiceForm) (Result, error) {
	fields, err := form.Parse()
	if err != nil {
		return Result{}, fmt.Errorf("create invoice: %w", err)
	}

	inv := &models.Invoice{
		CustomerID: fields.CustomerID,
		Amount:     fields.Amount,
		Status:     fields.Status,
		Date:       s.Today(),
	}

	var res Result
	if err := s.store.Create(ctx, inv); err != nil {
		if res.Swallowed, err = s.storageFailure("create", err); err != nil {
			return Result{}, err
		}
	} else {
		res.InvoiceID = inv.ID
		res.RowsAffected = 1
		s.logger.Info("Invoice created",
			zap.String("invoice_id", inv.ID),
			zap.String("customer_id", inv.CustomerID),
			zap.Int64("amount", inv.Amount),
			zap.String("status", string(inv.Status)))
	}

	s.revalidate(ctx, &res, InvoicesPath)
	res.NextView = InvoicesPath
	return res, nil
}

// Update validates form and rewrites customer, amount and status of the
// invoice id. Id and date are left untouched; an unknown id affects no rows.
func (s *InvoiceService) Update(ctx context.Context, id string, form InvoiceForm) (Result, error) {
	fields, err := form.Parse()
	if err != nil {
		return Result{}, fmt.Errorf("update invoice %s: %w", id, err)
	}

	res := Result{InvoiceID: id}
	n, err := s.store.Update(ctx, id, fields)
	if err != nil {
		if res.Swallowed, err = s.storageFailure("update", err); err != nil {
			return Result{}, err
		}
	} else {
		res.RowsAffected = n
		if n == 0 {
			s.logger.Info("Invoice update matched no rows", zap.String("invoice_id", id))
		}
	}

	s.revalidate(ctx, &res, InvoicesPath)
	res.NextView = InvoicesPath
	return res, nil
}

// Delete removes the invoice id; an unknown id is a no-op. The caller stays
// on its current view.
func (s *InvoiceService) Delete(ctx context.Context, id string) (Result, error) {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		s.logger.Error("Failed to delete invoice", zap.String("invoice_id", id), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	res := Result{InvoiceID: id, RowsAffected: n}
	s.revalidate(ctx, &res, InvoicesPath)
	return res, nil
}

// storageFailure logs err and, under PolicySwallow, returns it as swallowed.
// Otherwise it returns the wrapped error to report.
func (s *InvoiceService) storageFailure(op string, err error) (swallowed, report error) {
	s.logger.Error("Failed to "+op+" invoice",
		zap.String("policy", string(s.policy)),
		zap.Error(err))
	if s.policy == PolicySwallow {
		return err, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrStorage, err)
}

// revalidate marks path stale. The write already happened, so a failure
// here is logged rather than returned.
func (s *InvoiceService) revalidate(ctx context.Context, res *Result, path string) {
	if s.revalidator == nil {
		return
	}
	if err := s.revalidator.Revalidate(ctx, path); err != nil {
		s.logger.Warn("Failed to revalidate view", zap.String("path", path), zap.Error(err))
	}
	res.Revalidated = append(res.Revalidated, path)
}

// Page is one page of the invoice list.
type Page struct {
	Invoices   []models.Invoice
	Query      string
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

// List returns the requested page of invoices matching query.
func (s *InvoiceService) List(ctx context.Context, query string, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	invoices, total, err := s.store.List(ctx, repository.ListParams{
		Query:  query,
		Limit:  DefaultPageSize,
		Offset: (page - 1) * DefaultPageSize,
	})
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	pages := int((total + DefaultPageSize - 1) / DefaultPageSize)
	return Page{
		Invoices:   invoices,
		Query:      query,
		Page:       page,
		PageSize:   DefaultPageSize,
		Total:      total,
		TotalPages: pages,
	}, nil
}

// Get loads one invoice; repository.ErrNotFound is passed through.
func (s *InvoiceService) Get(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return inv, nil
}

// Customers lists the customers an invoice can reference.
func (s *InvoiceService) Customers(ctx context.Context) ([]models.Customer, error) {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return customers, nil
}
