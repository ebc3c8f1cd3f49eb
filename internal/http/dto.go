package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"fintrack/internal/core"
)

const maxBodyBytes = 1 << 20

// validationHelper reports struct tag violations using JSON field names.
type validationHelper struct {
	validator *validator.Validate
}

func newValidationHelper() *validationHelper {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &validationHelper{validator: v}
}

func (vh *validationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// amountField accepts an amount as a JSON number (12.5) or string ("12,50").
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or numeric string")
	}
	*a = amountField(n.String())
	return nil
}

type transactionRequest struct {
	Amount      amountField `json:"amount" validate:"required"`
	Type        string      `json:"type" validate:"required,oneof=INCOME EXPENSE income expense"`
	Category    string      `json:"category" validate:"required,max=100"`
	Date        string      `json:"date" validate:"required,datetime=2006-01-02"`
	Description string      `json:"description" validate:"max=200"`
}

// toInput converts a tag-validated request into ledger input.
func (req transactionRequest) toInput() (core.TransactionInput, error) {
	amount, err := core.ParseAmount(string(req.Amount))
	if err != nil {
		return core.TransactionInput{}, core.Validation(err)
	}
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		return core.TransactionInput{}, core.Validation(err)
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.TransactionInput{}, core.Validation(err)
	}
	return core.TransactionInput{
		Amount:      amount,
		Type:        typ,
		Category:    sanitizeInput(req.Category),
		Date:        date,
		Description: sanitizeInput(req.Description),
	}, nil
}

// decodeJSON reads a single JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

type transactionResponse struct {
	ID          string    `json:"id"`
	Amount      string    `json:"amount"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Amount:      core.FormatAmount(tx.Amount),
		Type:        string(tx.Type),
		Category:    tx.Category,
		Date:        tx.Date.String(),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt,
		UpdatedAt:   tx.UpdatedAt,
	}
}

func newTransactionList(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = newTransactionResponse(tx)
	}
	return out
}

type listResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Count        int                   `json:"count"`
}

type categoryTotalResponse struct {
	Category  string `json:"category"`
	Total     string `json:"total"`
	Suggested bool   `json:"suggested"`
}

type monthTrendResponse struct {
	Month   string `json:"month"`
	Label   string `json:"label"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Net     string `json:"net"`
}

type summaryResponse struct {
	Income     string                  `json:"income"`
	Expense    string                  `json:"expense"`
	Balance    string                  `json:"balance"`
	Display    displayTotals           `json:"display"`
	Count      int                     `json:"count"`
	Categories []categoryTotalResponse `json:"categories"`
	Trend      []monthTrendResponse    `json:"trend"`
	Recent     []transactionResponse   `json:"recent"`
}

// displayTotals carries the dashboard renderings ("$1,950.00").
type displayTotals struct {
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Balance string `json:"balance"`
}

func newSummaryResponse(sum core.Summary) summaryResponse {
	resp := summaryResponse{
		Income:  core.FormatAmount(sum.Income),
		Expense: core.FormatAmount(sum.Expense),
		Balance: core.FormatAmount(sum.Balance),
		Display: displayTotals{
			Income:  core.FormatUSD(sum.Income),
			Expense: core.FormatUSD(sum.Expense),
			Balance: core.FormatUSD(sum.Balance),
		},
		Count:      sum.Count,
		Categories: make([]categoryTotalResponse, len(sum.Categories)),
		Trend:      make([]monthTrendResponse, len(sum.Trend)),
		Recent:     newTransactionList(sum.Recent),
	}
	for i, c := range sum.Categories {
		resp.Categories[i] = categoryTotalResponse{
			Category:  c.Category,
			Total:     core.FormatAmount(c.Total),
			Suggested: core.IsSuggestedCategory(c.Category),
		}
	}
	for i, m := range sum.Trend {
		resp.Trend[i] = monthTrendResponse{
			Month:   m.Month,
			Label:   m.Label,
			Income:  core.FormatAmount(m.Income),
			Expense: core.FormatAmount(m.Expense),
			Net:     core.FormatAmount(m.Net),
		}
	}
	return resp
}

type overviewResponse struct {
	Summary      summaryResponse       `json:"summary"`
	Transactions []transactionResponse `json:"transactions"`
}
