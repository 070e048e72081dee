package validate

import (
	"strings"
	"testing"
)

type lineItem struct {
	Quantity  int     `json:"order_qty" validate:"gte=1"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	Currency  string  `json:"currency_code,omitempty" validate:"omitempty,iso4217"`
}

type order struct {
	ID            string     `json:"id" validate:"required"`
	AccountNumber string     `json:"account_number" validate:"required"`
	TTL           int        `json:"ttl" validate:"gte=0"`
	Items         []lineItem `json:"items" validate:"dive"`
}

func validOrder() *order {
	return &order{
		ID:            "SalesOrder1",
		AccountNumber: "Account1",
		TTL:           60,
		Items:         []lineItem{{Quantity: 1, UnitPrice: 418.4589}},
	}
}

func TestStruct_ValidInput(t *testing.T) {
	if err := Struct(validOrder()); err != nil {
		t.Errorf("Struct() with valid input returned error: %v", err)
	}
}

func TestStruct_MissingRequired(t *testing.T) {
	o := validOrder()
	o.AccountNumber = ""

	err := Struct(o)
	if err == nil {
		t.Fatal("Struct() should return error for missing required field")
	}
	if !strings.Contains(err.Error(), "account_number") {
		t.Errorf("Error should mention 'account_number' field, got: %v", err)
	}
	if strings.Contains(err.Error(), "AccountNumber") {
		t.Errorf("Error should not contain Go field name, got: %v", err)
	}
}

func TestStruct_NestedItems(t *testing.T) {
	tests := []struct {
		name      string
		item      lineItem
		expectErr bool
	}{
		{"valid item", lineItem{Quantity: 3, UnitPrice: 17.1, Currency: "USD"}, false},
		{"zero quantity", lineItem{Quantity: 0, UnitPrice: 1}, true},
		{"negative price", lineItem{Quantity: 1, UnitPrice: -1}, true},
		{"unknown currency", lineItem{Quantity: 1, UnitPrice: 1, Currency: "XXQ"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOrder()
			o.Items = []lineItem{tt.item}
			err := Struct(o)
			if (err != nil) != tt.expectErr {
				t.Errorf("Struct() error = %v, expectErr %v", err, tt.expectErr)
			}
		})
	}
}

func TestStruct_MultipleErrors(t *testing.T) {
	err := Struct(&order{TTL: -1})
	if err == nil {
		t.Fatal("Struct() should return error for multiple invalid fields")
	}
	if !strings.Contains(err.Error(), ";") {
		t.Errorf("Multiple errors should be separated by ';', got: %v", err)
	}
}

func TestStruct_InvalidInput(t *testing.T) {
	if err := Struct(nil); err == nil || !strings.Contains(err.Error(), "nil") {
		t.Errorf("Struct(nil) should mention nil, got: %v", err)
	}
	for _, input := range []any{"text", 42, []int{1}, map[string]int{"a": 1}} {
		if err := Struct(input); err == nil || !strings.Contains(err.Error(), "not a struct") {
			t.Errorf("Struct(%v) should report 'not a struct', got: %v", input, err)
		}
	}
}

func TestGetValidator_Singleton(t *testing.T) {
	if getValidator() != getValidator() {
		t.Error("getValidator() should return the same instance")
	}
}
