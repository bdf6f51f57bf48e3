package entities

import (
	"fmt"
	"time"
)

// Address is the customer address copied onto the RFQ header
type Address struct {
	Line1   string
	Line2   string
	City    string
	State   string
	ZipCode string
	Country string
}

// RFQ is the request-for-quote header
type RFQ struct {
	Customer          Handle
	Buyer             Handle
	CustomerRFQNumber string
	Address           Address
	InquiryDate       time.Time
	DueDate           time.Time
	CreateDate        time.Time
}

// NewRFQ creates a validated RFQ header
func NewRFQ(customer, buyer Handle, customerRFQNumber string, address Address, inquiry, due, created time.Time) (*RFQ, error) {
	if !customer.Valid() {
		return nil, fmt.Errorf("customer handle must be set")
	}
	if !inquiry.IsZero() && !due.IsZero() && due.Before(inquiry) {
		return nil, fmt.Errorf("due date %s is before inquiry date %s", due.Format(DateLayout), inquiry.Format(DateLayout))
	}
	return &RFQ{
		Customer:          customer,
		Buyer:             buyer,
		CustomerRFQNumber: customerRFQNumber,
		Address:           address,
		InquiryDate:       inquiry,
		DueDate:           due,
		CreateDate:        created,
	}, nil
}

// DateLayout is the month-day-year layout used for RFQ dates
const DateLayout = "01-02-2006"

// RFQLineItem binds an RFQ to the item and quote of its main part
type RFQLineItem struct {
	RFQ      Handle
	Item     Handle
	Quote    Handle
	Sequence int
	Quantity Quantity
}

// ParseDate parses a month-day-year RFQ date. An empty string is the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected MM-DD-YYYY: %w", s, err)
	}
	return t, nil
}
