package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Contact is the part of a contact record the agenda displays.
type Contact struct {
	ID        Ident  `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
}

// DisplayName picks the most specific non-empty name.
func (c Contact) DisplayName() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(c.FirstName + " " + c.LastName); n != "" {
		return n
	}
	return strings.TrimSpace(c.Company)
}

// Invoice is the part of an invoice record the hover preview displays.
type Invoice struct {
	ID            Ident  `json:"id"`
	Number        string `json:"number"`
	Total         Amount `json:"total"`
	Currency      string `json:"currency"`
	PaymentStatus string `json:"payment_status"`
}

// Contact fetches one contact by id.
func (c *Client) Contact(ctx context.Context, id string) (Contact, error) {
	var out Contact
	data, err := c.do(ctx, http.MethodGet, "contacts/"+url.PathEscape(id)+"/", nil, nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("api: decode contact %s: %w", id, err)
	}
	return out, nil
}

// Invoice fetches one invoice by id.
func (c *Client) Invoice(ctx context.Context, id string) (Invoice, error) {
	var out Invoice
	data, err := c.do(ctx, http.MethodGet, "invoices/"+url.PathEscape(id)+"/", nil, nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("api: decode invoice %s: %w", id, err)
	}
	return out, nil
}

// Ident accepts ids sent as JSON numbers or strings.
type Ident string

func (i *Ident) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*i = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*i = Ident(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("api: invalid id %s", s)
	}
	*i = Ident(n.String())
	return nil
}

// Amount accepts decimals sent as JSON numbers or strings.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("api: invalid amount %s", string(b))
	}
	*a = Amount(v)
	return nil
}
