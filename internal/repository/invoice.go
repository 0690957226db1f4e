// Package repository holds the storage access for invoices. Every
// statement goes through GORM placeholders; nothing is concatenated into SQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/invoice-dashboard/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("invoice not found")

// InvoiceFields are the columns an update may change.
type InvoiceFields struct {
	CustomerID string
	Amount     int64
	Status     models.InvoiceStatus
}

// ListParams filters and pages the invoice list.
type ListParams struct {
	Query  string
	Limit  int
	Offset int
}

// InvoiceStore is the storage contract used by the invoice service.
type InvoiceStore interface {
	Create(ctx context.Context, inv *models.Invoice) error
	Update(ctx context.Context, id string, f InvoiceFields) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
	List(ctx context.Context, p ListParams) ([]models.Invoice, int64, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
}

// GormInvoiceStore implements InvoiceStore on a *gorm.DB.
type GormInvoiceStore struct {
	db *gorm.DB
	// uuidKeys is set on Postgres, where invoices.id is a uuid column and
	// a malformed id is rejected by the server instead of matching nothing.
	uuidKeys bool
}

func NewGormInvoiceStore(db *gorm.DB) *GormInvoiceStore {
	return &GormInvoiceStore{
		db:       db,
		uuidKeys: db.Dialector.Name() == "postgres",
	}
}

// matchable reports whether id could identify a row at all.
func (s *GormInvoiceStore) matchable(id string) bool {
	if id == "" {
		return false
	}
	if !s.uuidKeys {
		return true
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *GormInvoiceStore) Create(ctx context.Context, inv *models.Invoice) error {
	if err := s.db.WithContext(ctx).Omit("Customer").Create(inv).Error; err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// Update writes customer, amount and status of the row matching id.
// A missing row is not an error; the affected count is 0.
func (s *GormInvoiceStore) Update(ctx context.Context, id string, f InvoiceFields) (int64, error) {
	if !s.matchable(id) {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"customer_id": f.CustomerID,
			"amount":      f.Amount,
			"status":      string(f.Status),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("update invoice %s: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes the row matching id. A missing row is not an error.
func (s *GormInvoiceStore) Delete(ctx context.Context, id string) (int64, error) {
	if !s.matchable(id) {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Invoice{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete invoice %s: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormInvoiceStore) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	if !s.matchable(id) {
		return nil, ErrNotFound
	}
	var inv models.Invoice
	err := s.db.WithContext(ctx).Preload("Customer").Where("id = ?", id).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice %s: %w", id, err)
	}
	return &inv, nil
}

// List returns one page of invoices, newest first, with customers preloaded.
func (s *GormInvoiceStore) List(ctx context.Context, p ListParams) ([]models.Invoice, int64, error) {
	base := s.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Joins("LEFT JOIN customers ON customers.id = invoices.customer_id")
	if q := strings.TrimSpace(p.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		base = base.Where(
			"LOWER(customers.name) LIKE ? OR LOWER(customers.email) LIKE ? OR LOWER(invoices.status) LIKE ?",
			like, like, like,
		)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	var invoices []models.Invoice
	q := base.Preload("Customer").Order("invoices.date DESC").Order("invoices.id")
	if p.Limit > 0 {
		q = q.Limit(p.Limit).Offset(p.Offset)
	}
	if err := q.Find(&invoices).Error; err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, total, nil
}

func (s *GormInvoiceStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	if err := s.db.WithContext(ctx).Order("name").Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}
