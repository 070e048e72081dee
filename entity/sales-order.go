package entity

import (
	"time"

	"docsample/internal/docdb"
)

// DateLayout is used for every date stored on an order.
const DateLayout = time.RFC3339Nano

// DefaultTTL expires sample orders after 30 days.
const DefaultTTL = 60 * 60 * 24 * 30

const (
	FieldShippedDate = "shipped_date"
	FieldFreight     = "freight"
)

// SalesOrder covers both order schema versions; V2 only adds optional fields.
type SalesOrder struct {
	ID                  string     `json:"id" validate:"required"`
	AccountNumber       string     `json:"account_number" validate:"required"`
	PurchaseOrderNumber string     `json:"purchase_order_number,omitempty"`
	OrderDate           string     `json:"order_date,omitempty"`
	DueDate             string     `json:"due_date,omitempty"`
	ShippedDate         string     `json:"shipped_date,omitempty"`
	Subtotal            float64    `json:"subtotal" validate:"gte=0"`
	TaxAmount           float64    `json:"tax_amount" validate:"gte=0"`
	Freight             float64    `json:"freight" validate:"gte=0"`
	DiscountAmt         float64    `json:"discount_amt,omitempty" validate:"gte=0"`
	TotalDue            float64    `json:"total_due" validate:"gte=0"`
	Items               []LineItem `json:"items,omitempty" validate:"dive"`
	TTL                 *int       `json:"ttl,omitempty" validate:"omitempty,gte=0"`

	ETag      string `json:"_etag,omitempty"`
	Timestamp int64  `json:"_ts,omitempty"`

	// stored is the document the order was decoded from, with every
	// property the struct does not model.
	stored docdb.Document
}

type LineItem struct {
	OrderQty       int     `json:"order_qty" validate:"gte=1"`
	ProductID      int     `json:"product_id,omitempty"`
	ProductCode    string  `json:"product_code,omitempty"`
	ProductName    string  `json:"product_name,omitempty"`
	CurrencySymbol string  `json:"currency_symbol,omitempty"`
	CurrencyCode   string  `json:"currency_code,omitempty" validate:"omitempty,iso4217"`
	LegacyCurrency string  `json:"currecny_code,omitempty"`
	UnitPrice      float64 `json:"unit_price" validate:"gte=0"`
	LinePrice      float64 `json:"line_price" validate:"gte=0"`
}

func expiresIn(seconds int) *int {
	return &seconds
}

func date(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}

// NewSalesOrder builds a first-version order: nested items reference
// products by id and the order has not shipped yet.
func NewSalesOrder(id string) *SalesOrder {
	return &SalesOrder{
		ID:                  id,
		AccountNumber:       "Account1",
		PurchaseOrderNumber: "PO18009186470",
		OrderDate:           date(2005, time.January, 10),
		ShippedDate:         time.Time{}.Format(DateLayout),
		Subtotal:            419.4589,
		TaxAmount:           12.5838,
		Freight:             472.3108,
		TotalDue:            985.018,
		Items: []LineItem{
			{
				OrderQty:  1,
				ProductID: 100,
				UnitPrice: 418.4589,
				LinePrice: 418.4589,
			},
		},
		TTL: expiresIn(DefaultTTL),
	}
}

// NewSalesOrderV2 builds an order in the evolved schema. Product details are
// denormalized onto the items and the order carries due date and discount.
func NewSalesOrderV2(id string) *SalesOrder {
	return &SalesOrder{
		ID:                  id,
		AccountNumber:       "Account2",
		PurchaseOrderNumber: "PO15428132599",
		OrderDate:           date(2005, time.July, 11),
		DueDate:             date(2005, time.July, 21),
		ShippedDate:         date(2005, time.July, 15),
		Subtotal:            6107.0820,
		TaxAmount:           586.1203,
		Freight:             183.1626,
		DiscountAmt:         1982.872,
		TotalDue:            4893.3929,
		Items: []LineItem{
			{
				OrderQty:       3,
				ProductCode:    "A-123",
				ProductName:    "Product 1",
				CurrencySymbol: "$",
				CurrencyCode:   "USD",
				UnitPrice:      17.1,
				LinePrice:      5.7,
			},
		},
		TTL: expiresIn(DefaultTTL),
	}
}

// IsV2 reports whether the order uses the denormalized item schema.
func (o *SalesOrder) IsV2() bool {
	for _, item := range o.Items {
		if item.ProductCode != "" {
			return true
		}
	}
	return o.DueDate != ""
}

func (o *SalesOrder) Document() (docdb.Document, error) {
	return docdb.ToDocument(o)
}

func SalesOrderFromDocument(doc docdb.Document) (*SalesOrder, error) {
	var order SalesOrder
	if err := doc.Decode(&order); err != nil {
		return nil, err
	}
	order.stored = doc.Clone()
	return &order, nil
}

// Patch returns the document to write back for a partial change: the stored
// document with only the given properties replaced. An order that was never
// read starts from its own properties.
func (o *SalesOrder) Patch(changes docdb.Document) (docdb.Document, error) {
	doc := o.stored.Clone()
	if doc == nil {
		var err error
		if doc, err = o.Document(); err != nil {
			return nil, err
		}
	}
	for name, value := range changes {
		doc[name] = value
	}
	return doc, nil
}
