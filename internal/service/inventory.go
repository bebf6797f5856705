package service

import (
	"context"
	"fmt"

	"github.com/sweetshop/sweet-shop/internal/logging"
	"github.com/sweetshop/sweet-shop/internal/models"
	"github.com/sweetshop/sweet-shop/internal/repo"
)

// InventoryService implements sweet CRUD and stock operations. Every
// operation takes the resolved caller explicitly; delete and restock
// additionally require the caller to be admin.
type InventoryService struct {
	Repo *repo.GormRepo
}

func validateSweet(s models.Sweet) error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if s.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if s.Price <= 0 {
		return fmt.Errorf("%w: price must be greater than 0", ErrInvalidInput)
	}
	if s.Quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (s *InventoryService) Add(ctx context.Context, caller *models.User, sweet models.Sweet) (*models.Sweet, error) {
	l := logging.FromContext(ctx).With("svc", "inventory.add")

	if err := validateSweet(sweet); err != nil {
		return nil, err
	}
	if err := s.Repo.CreateSweet(ctx, &sweet); err != nil {
		l.Error("add_error", "error", err)
		return nil, err
	}

	l.Info("add_success", "sweet_id", sweet.ID, "user_id", caller.ID)
	return &sweet, nil
}

func (s *InventoryService) List(ctx context.Context, caller *models.User) ([]models.Sweet, error) {
	return s.Repo.ListSweets(ctx)
}

func (s *InventoryService) Search(ctx context.Context, caller *models.User, f repo.SweetFilter) ([]models.Sweet, error) {
	return s.Repo.SearchSweets(ctx, f)
}

func (s *InventoryService) Update(ctx context.Context, caller *models.User, id uint, fields models.Sweet) (*models.Sweet, error) {
	if err := validateSweet(fields); err != nil {
		return nil, err
	}
	return s.Repo.UpdateSweet(ctx, id, fields)
}

func (s *InventoryService) Delete(ctx context.Context, caller *models.User, id uint) error {
	l := logging.FromContext(ctx).With("svc", "inventory.delete")

	if !caller.IsAdmin {
		return ErrForbidden
	}
	if err := s.Repo.DeleteSweet(ctx, id); err != nil {
		return err
	}

	l.Info("delete_success", "sweet_id", id, "user_id", caller.ID)
	return nil
}

func (s *InventoryService) Purchase(ctx context.Context, caller *models.User, id uint, amount int) (*models.Sweet, error) {
	l := logging.FromContext(ctx).With("svc", "inventory.purchase")

	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrInvalidInput)
	}

	sweet, err := s.Repo.PurchaseSweet(ctx, id, amount)
	if err != nil {
		return nil, err
	}

	l.Info("purchase_success", "sweet_id", id, "amount", amount, "user_id", caller.ID)
	return sweet, nil
}

func (s *InventoryService) Restock(ctx context.Context, caller *models.User, id uint, amount int) (*models.Sweet, error) {
	l := logging.FromContext(ctx).With("svc", "inventory.restock")

	if !caller.IsAdmin {
		return nil, ErrForbidden
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrInvalidInput)
	}

	sweet, err := s.Repo.RestockSweet(ctx, id, amount)
	if err != nil {
		return nil, err
	}

	l.Info("restock_success", "sweet_id", id, "amount", amount, "user_id", caller.ID)
	return sweet, nil
}
