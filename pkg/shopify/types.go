package shopify

import "time"

// ==================== Admin REST 资源 ====================
// 只声明同步用到的字段，平台可能省略任意字段

type Product struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Vendor      string     `json:"vendor"`
	ProductType string     `json:"product_type"`
	Status      string     `json:"status"`
	Handle      string     `json:"handle"`
	Tags        string     `json:"tags"` // 逗号分隔
	Variants    []Variant  `json:"variants"`
	Images      []Image    `json:"images"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type Variant struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"product_id"`
	Title             string `json:"title"`
	Price             string `json:"price"`
	SKU               string `json:"sku"`
	InventoryQuantity int    `json:"inventory_quantity"`
}

type Image struct {
	ID       int64  `json:"id"`
	Src      string `json:"src"`
	Position int    `json:"position"`
}

type Customer struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       string     `json:"phone"`
	OrdersCount int        `json:"orders_count"`
	TotalSpent  string     `json:"total_spent"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type Order struct {
	ID                int64          `json:"id"`
	Name              string         `json:"name"`
	Email             string         `json:"email"`
	FinancialStatus   string         `json:"financial_status"`
	FulfillmentStatus string         `json:"fulfillment_status"`
	Currency          string         `json:"currency"`
	SubtotalPrice     string         `json:"subtotal_price"`
	TotalPrice        string         `json:"total_price"`
	TotalTax          string         `json:"total_tax"`
	TotalDiscounts    string         `json:"total_discounts"`
	DiscountCodes     []DiscountCode `json:"discount_codes"`
	LineItems         []LineItem     `json:"line_items"`
	Customer          *Customer      `json:"customer"`
	ProcessedAt       *time.Time     `json:"processed_at"`
	CreatedAt         *time.Time     `json:"created_at"`
	UpdatedAt         *time.Time     `json:"updated_at"`
}

type DiscountCode struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
	Type   string `json:"type"`
}

type LineItem struct {
	ID        int64  `json:"id"`
	ProductID *int64 `json:"product_id"`
	VariantID *int64 `json:"variant_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	SKU       string `json:"sku"`
}

// 列表响应外层
type productsPage struct {
	Products []Product `json:"products"`
}

type customersPage struct {
	Customers []Customer `json:"customers"`
}

type ordersPage struct {
	Orders []Order `json:"orders"`
}
