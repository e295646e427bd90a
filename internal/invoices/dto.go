package invoices

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/platform/httpx"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// OptionalID decodes an inventory reference where null, "" and 0 all mean
// no link. Numeric strings are accepted.
type OptionalID struct {
	ID *int64
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.ID = nil
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return shared.Invalid("inventory_id", "must be an integer")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		n, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return shared.Invalid("inventory_id", "must be an integer")
		}
	}
	if n < 0 {
		return shared.Invalid("inventory_id", "must not be negative")
	}
	if n != 0 {
		o.ID = &n
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o OptionalID) MarshalJSON() ([]byte, error) {
	if o.ID == nil {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(*o.ID, 10)), nil
}

type lineRequest struct {
	InventoryID OptionalID      `json:"inventory_id"`
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    int64           `json:"quantity" validate:"gt=0"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Total       decimal.Decimal `json:"total"`
}

type createRequest struct {
	CustomerName string           `json:"customer_name" validate:"required,max=200"`
	IssueDate    string           `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate      string           `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
	Status       string           `json:"status" validate:"omitempty,oneof=DRAFT ISSUED SENT"`
	Notes        string           `json:"notes" validate:"max=2000"`
	Items        []lineRequest    `json:"items" validate:"required,min=1,dive"`
}

type updateRequest struct {
	CustomerName *string          `json:"customer_name" validate:"omitempty,max=200"`
	DueDate      *string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
	Status       *string          `json:"status" validate:"omitempty,oneof=DRAFT ISSUED SENT PAID OVERDUE CANCELLED"`
	Notes        *string          `json:"notes" validate:"omitempty,max=2000"`
	Items        []lineRequest    `json:"items" validate:"omitempty,min=1,dive"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT ISSUED SENT PAID OVERDUE CANCELLED"`
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

func toLineItems(lines []lineRequest) []LineItem {
	if lines == nil {
		return nil
	}
	out := make([]LineItem, len(lines))
	for i, l := range lines {
		out[i] = LineItem{
			InventoryID: l.InventoryID.ID,
			Description: l.Description,
			Quantity:    l.Quantity,
			Price:       l.Price,
			Total:       l.Total,
		}
	}
	return out
}

func (r createRequest) toInput(companyID, actorID int64) (CreateInput, error) {
	in := CreateInput{
		CompanyID:    companyID,
		CustomerName: r.CustomerName,
		TaxRate:      r.TaxRate,
		Status:       Status(r.Status),
		Notes:        r.Notes,
		Items:        toLineItems(r.Items),
		ActorID:      actorID,
	}
	var err error
	if r.IssueDate != "" {
		if in.IssueDate, err = httpx.ParseDate("issue_date", r.IssueDate); err != nil {
			return CreateInput{}, err
		}
	}
	if r.DueDate != "" {
		if in.DueDate, err = httpx.ParseDate("due_date", r.DueDate); err != nil {
			return CreateInput{}, err
		}
	}
	return in, nil
}

func (r updateRequest) toInput(actorID int64) (UpdateInput, error) {
	in := UpdateInput{
		CustomerName: r.CustomerName,
		TaxRate:      r.TaxRate,
		Notes:        r.Notes,
		Items:        toLineItems(r.Items),
		ActorID:      actorID,
	}
	if r.Status != nil {
		st := Status(*r.Status)
		in.Status = &st
	}
	if r.DueDate != nil {
		due, err := httpx.ParseDate("due_date", *r.DueDate)
		if err != nil {
			return UpdateInput{}, err
		}
		in.DueDate = &due
	}
	return in, nil
}
