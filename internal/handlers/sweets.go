package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sweetshop/sweet-shop/internal/middleware/auth"
	"github.com/sweetshop/sweet-shop/internal/models"
	"github.com/sweetshop/sweet-shop/internal/mykafka"
	"github.com/sweetshop/sweet-shop/internal/repo"
	"github.com/sweetshop/sweet-shop/internal/service"
	"github.com/sweetshop/sweet-shop/internal/service/search"
)

type SweetHandler struct {
	Inventory *service.InventoryService
	Producer  *mykafka.Producer
	ES        *elasticsearch.Client
	Index     string
}

type sweetRequest struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type amountRequest struct {
	Amount *int `json:"amount"`
}

func mapServiceError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, repo.ErrInsufficientStock):
		return echo.NewHTTPError(http.StatusBadRequest, "Not enough stock")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Sweet not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id must be an integer")
	}
	return uint(id), nil
}

func (h *SweetHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "sweet_events", fmt.Sprint(event["sweet_id"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// mirror keeps the search index in step with the store, best effort.
func (h *SweetHandler) mirror(c echo.Context, sweet *models.Sweet) {
	if h.ES == nil {
		return
	}
	if err := search.IndexSweet(c.Request().Context(), h.ES, h.Index, sweet); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *SweetHandler) CreateSweet(c echo.Context) error {
	caller := auth.CallerFrom(c)

	var req sweetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	sweet, err := h.Inventory.Add(c.Request().Context(), caller, models.Sweet{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		return mapServiceError(err)
	}

	h.publish(c, map[string]interface{}{
		"type":     "sweet_created",
		"sweet_id": sweet.ID,
		"name":     sweet.Name,
		"user_id":  caller.ID,
	})
	h.mirror(c, sweet)

	return c.JSON(http.StatusCreated, sweet)
}

func (h *SweetHandler) ListSweets(c echo.Context) error {
	caller := auth.CallerFrom(c)

	items, err := h.Inventory.List(c.Request().Context(), caller)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, items)
}

func (h *SweetHandler) SearchSweets(c echo.Context) error {
	caller := auth.CallerFrom(c)

	filter := repo.SweetFilter{
		Name:     c.QueryParam("name"),
		Category: c.QueryParam("category"),
	}
	if raw := c.QueryParam("min_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "min_price must be a number")
		}
		filter.MinPrice = &v
	}
	if raw := c.QueryParam("max_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "max_price must be a number")
		}
		filter.MaxPrice = &v
	}

	items, err := h.Inventory.Search(c.Request().Context(), caller, filter)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, items)
}

func (h *SweetHandler) UpdateSweet(c echo.Context) error {
	caller := auth.CallerFrom(c)

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req sweetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	sweet, err := h.Inventory.Update(c.Request().Context(), caller, id, models.Sweet{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		return mapServiceError(err)
	}

	h.publish(c, map[string]interface{}{
		"type":     "sweet_updated",
		"sweet_id": sweet.ID,
		"name":     sweet.Name,
		"user_id":  caller.ID,
	})
	h.mirror(c, sweet)

	return c.JSON(http.StatusOK, sweet)
}

func (h *SweetHandler) DeleteSweet(c echo.Context) error {
	caller := auth.CallerFrom(c)

	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.Inventory.Delete(c.Request().Context(), caller, id); err != nil {
		return mapServiceError(err)
	}

	h.publish(c, map[string]interface{}{
		"type":     "sweet_deleted",
		"sweet_id": id,
		"user_id":  caller.ID,
	})
	if h.ES != nil {
		if err := search.DeleteSweet(c.Request().Context(), h.ES, h.Index, id); err != nil {
			c.Logger().Errorf("ES delete error: %v", err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"detail": "Sweet deleted successfully"})
}

func (h *SweetHandler) PurchaseSweet(c echo.Context) error {
	caller := auth.CallerFrom(c)

	id, err := parseID(c)
	if err != nil {
		return err
	}

	// Body is optional; an omitted amount means one unit.
	var req amountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	amount := 1
	if req.Amount != nil {
		amount = *req.Amount
	}

	sweet, err := h.Inventory.Purchase(c.Request().Context(), caller, id, amount)
	if err != nil {
		return mapServiceError(err)
	}

	h.publish(c, map[string]interface{}{
		"type":     "sweet_purchased",
		"sweet_id": sweet.ID,
		"amount":   amount,
		"user_id":  caller.ID,
	})
	h.mirror(c, sweet)

	return c.JSON(http.StatusOK, echo.Map{"id": sweet.ID, "quantity": sweet.Quantity})
}

func (h *SweetHandler) RestockSweet(c echo.Context) error {
	caller := auth.CallerFrom(c)

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req amountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Amount == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "amount is required")
	}

	sweet, err := h.Inventory.Restock(c.Request().Context(), caller, id, *req.Amount)
	if err != nil {
		return mapServiceError(err)
	}

	h.publish(c, map[string]interface{}{
		"type":     "sweet_restocked",
		"sweet_id": sweet.ID,
		"amount":   *req.Amount,
		"user_id":  caller.ID,
	})
	h.mirror(c, sweet)

	return c.JSON(http.StatusOK, echo.Map{"id": sweet.ID, "quantity": sweet.Quantity})
}
