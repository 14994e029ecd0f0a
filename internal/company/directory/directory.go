// Package directory keeps the company list shown on the dashboard and each
// user's selected company.
package directory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	e "github.com/lucidcount/dashboard/internal/company/errors"
	"github.com/lucidcount/dashboard/internal/company/models"
	"go.uber.org/zap"
)

// Source loads the full company list.
type Source interface {
	FetchCompanies(ctx context.Context) ([]models.Company, error)
}

// Directory is the in-memory company list. Companies registered after the
// initial load are appended without reloading.
type Directory struct {
	source Source
	logger *zap.Logger

	mu        sync.RWMutex
	loaded    bool
	companies []models.Company
	// selected maps a user to the tax ID of the company they are viewing.
	selected map[string]string
}

func New(source Source, logger *zap.Logger) *Directory {
	return &Directory{
		source:    source,
		logger:    logger.Named("directory"),
		companies: []models.Company{},
		selected:  make(map[string]string),
	}
}

// Refresh replaces the list with the backend's. Companies added locally that
// the backend did not return yet are kept at the end.
func (d *Directory) Refresh(ctx context.Context) error {
	companies, err := d.source.FetchCompanies(ctx)
	if err != nil {
		d.logger.Error("Failed to load companies", zap.Error(err))
		return fmt.Errorf("fetch companies: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	previous := d.companies
	d.companies = []models.Company{}
	for _, c := range slices.Concat(companies, previous) {
		if d.indexOf(c.ID) < 0 {
			d.companies = append(d.companies, c)
		}
	}
	d.loaded = true
	return nil
}

// Load refreshes the list the first time it is needed.
func (d *Directory) Load(ctx context.Context) error {
	d.mu.RLock()
	loaded := d.loaded
	d.mu.RUnlock()
	if loaded {
		return nil
	}
	return d.Refresh(ctx)
}

// Add appends c unless a company with the same id is listed. It reports
// whether the list changed.
func (d *Directory) Add(c models.Company) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.indexOf(c.ID) >= 0 {
		return false
	}
	d.companies = append(d.companies, c)
	d.logger.Info("Company added", zap.Int64("company_id", c.ID), zap.String("cnpj", c.TaxID))
	return true
}

func (d *Directory) indexOf(id int64) int {
	return slices.IndexFunc(d.companies, func(c models.Company) bool { return c.ID == id })
}

// List returns a copy of the companies in insertion order.
func (d *Directory) List() []models.Company {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.companies)
}

// Select makes the company with taxID the one user is viewing.
func (d *Directory) Select(user, taxID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !slices.ContainsFunc(d.companies, func(c models.Company) bool { return c.TaxID == taxID }) {
		return fmt.Errorf("%w: company %s", e.ErrNotFound, taxID)
	}
	d.selected[user] = taxID
	return nil
}

// Selected returns the company user is viewing, defaulting to the first listed.
func (d *Directory) Selected(user string) (models.Company, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if taxID, ok := d.selected[user]; ok {
		for _, c := range d.companies {
			if c.TaxID == taxID {
				return c, true
			}
		}
	}
	if len(d.companies) == 0 {
		return models.Company{}, false
	}
	return d.companies[0], true
}
