package service

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"shop_insight_v1/internal/model"
	"shop_insight_v1/pkg/shopify"
)

// ==================== 平台数据 -> 本地模型 ====================
// 平台可能省略任意字段，缺失值统一补为空串 / 0 / 当前时间

var errMissingExternalID = errors.New("missing external id")

func parseMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func timeOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback
	}
	return *t
}

func splitTags(raw string) datatypes.JSONSlice[string] {
	tags := datatypes.JSONSlice[string]{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func toJSON(v interface{}) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(b)
}

func mapProduct(storeID int64, p shopify.Product, now time.Time) (*model.Product, error) {
	if p.ID == 0 {
		return nil, errMissingExternalID
	}

	price := decimal.Zero
	if len(p.Variants) > 0 {
		price = parseMoney(p.Variants[0].Price)
	}
	status := p.Status
	if status == "" {
		status = "active"
	}
	title := p.Title
	if title == "" {
		title = "Untitled"
	}

	return &model.Product{
		MirrorModel:       model.MirrorModel{ID: model.MirrorID(storeID, p.ID), StoreID: storeID, ExternalID: p.ID},
		Title:             title,
		Vendor:            p.Vendor,
		ProductType:       p.ProductType,
		Status:            status,
		Handle:            p.Handle,
		Tags:              splitTags(p.Tags),
		Price:             price,
		Images:            toJSON(p.Images),
		Variants:          toJSON(p.Variants),
		ExternalCreatedAt: timeOr(p.CreatedAt, now),
		ExternalUpdatedAt: timeOr(p.UpdatedAt, now),
	}, nil
}

func mapCustomer(storeID int64, c shopify.Customer, now time.Time) (*model.Customer, error) {
	if c.ID == 0 {
		return nil, errMissingExternalID
	}
	return &model.Customer{
		MirrorModel:       model.MirrorModel{ID: model.MirrorID(storeID, c.ID), StoreID: storeID, ExternalID: c.ID},
		Email:             strings.ToLower(strings.TrimSpace(c.Email)),
		FirstName:         c.FirstName,
		LastName:          c.LastName,
		Phone:             c.Phone,
		OrdersCount:       c.OrdersCount,
		TotalSpent:        parseMoney(c.TotalSpent),
		ExternalCreatedAt: timeOr(c.CreatedAt, now),
		ExternalUpdatedAt: timeOr(c.UpdatedAt, now),
	}, nil
}

func mapOrder(storeID int64, o shopify.Order, now time.Time) (*model.Order, []model.OrderLineItem, error) {
	if o.ID == 0 {
		return nil, nil, errMissingExternalID
	}

	var customerID *string
	if o.Customer != nil && o.Customer.ID != 0 {
		id := model.MirrorID(storeID, o.Customer.ID)
		customerID = &id
	}

	codes := datatypes.JSONSlice[string]{}
	for _, dc := range o.DiscountCodes {
		if dc.Code != "" {
			codes = append(codes, dc.Code)
		}
	}

	items := make([]model.OrderLineItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		var productID int64
		if li.ProductID != nil {
			productID = *li.ProductID
		}
		items = append(items, model.OrderLineItem{
			StoreID:           storeID,
			ProductExternalID: productID,
			Title:             li.Title,
			Quantity:          li.Quantity,
			Price:             parseMoney(li.Price),
		})
	}

	created := timeOr(o.CreatedAt, now)
	order := &model.Order{
		MirrorModel:       model.MirrorModel{ID: model.MirrorID(storeID, o.ID), StoreID: storeID, ExternalID: o.ID},
		CustomerID:        customerID,
		Name:              o.Name,
		Email:             strings.ToLower(strings.TrimSpace(o.Email)),
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		Currency:          o.Currency,
		SubtotalPrice:     parseMoney(o.SubtotalPrice),
		TotalPrice:        parseMoney(o.TotalPrice),
		TotalTax:          parseMoney(o.TotalTax),
		TotalDiscounts:    parseMoney(o.TotalDiscounts),
		DiscountCodes:     codes,
		LineItems:         toJSON(o.LineItems),
		ProcessedAt:       timeOr(o.ProcessedAt, created),
		ExternalCreatedAt: created,
		ExternalUpdatedAt: timeOr(o.UpdatedAt, now),
	}
	order.StampOrderTime()
	return order, items, nil
}
