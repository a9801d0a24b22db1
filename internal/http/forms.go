package http

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"tallybook/internal/core"
)

const dateLayout = "2006-01-02"

// transactionForm carries the parsed and validated mutation body.
type transactionForm struct {
	Amount      core.Money
	PaymentType core.PaymentType
	Note        string
	Date        time.Time

	File       multipart.File
	FileHeader *multipart.FileHeader
}

func (f *transactionForm) Close() {
	if f.File != nil {
		f.File.Close()
	}
}

// parseTransactionForm reads a multipart or url-encoded body and
// validates every field, accumulating errors so the client sees them
// all at once.
func parseTransactionForm(r *http.Request, maxUploadBytes int64) (*transactionForm, []fieldError) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, []fieldError{{Field: "body", Message: "Invalid form body"}}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, []fieldError{{Field: "body", Message: "Invalid form body"}}
		}
	}

	form := &transactionForm{}
	var errs []fieldError

	amountRaw := strings.TrimSpace(r.FormValue("amount"))
	if amountRaw == "" {
		errs = append(errs, fieldError{Field: "amount", Message: "Amount is required"})
	} else {
		cents, err := core.ParseDecimalToCents(amountRaw)
		if err != nil {
			errs = append(errs, fieldError{Field: "amount", Message: "Invalid amount"})
		} else {
			form.Amount = core.Money{Cents: cents}
		}
	}

	paymentRaw := strings.TrimSpace(r.FormValue("paymentType"))
	if paymentRaw == "" {
		errs = append(errs, fieldError{Field: "paymentType", Message: "Payment type is required"})
	} else {
		form.PaymentType = core.PaymentType(paymentRaw)
		if err := form.PaymentType.Validate(); err != nil {
			errs = append(errs, fieldError{Field: "paymentType", Message: "Invalid payment type"})
		}
	}

	dateRaw := strings.TrimSpace(r.FormValue("date"))
	if dateRaw == "" {
		form.Date = core.StartOfDay(time.Now().UTC())
	} else {
		parsed, err := time.Parse(dateLayout, dateRaw)
		if err != nil {
			errs = append(errs, fieldError{Field: "date", Message: "Invalid date"})
		} else {
			form.Date = parsed.UTC()
		}
	}

	form.Note = strings.TrimSpace(r.FormValue("note"))

	if r.MultipartForm != nil {
		file, header, err := r.FormFile("attachment")
		switch {
		case err == nil:
			form.File = file
			form.FileHeader = header
		case errors.Is(err, http.ErrMissingFile):
			// attachment is optional
		default:
			errs = append(errs, fieldError{Field: "attachment", Message: "Invalid attachment"})
		}
	}

	if len(errs) > 0 {
		form.Close()
		return nil, errs
	}
	return form, nil
}

type createdByResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type transactionResponse struct {
	ID          int64             `json:"id"`
	Amount      float64           `json:"amount"`
	PaymentType string            `json:"paymentType"`
	Note        string            `json:"note,omitempty"`
	Attachment  string            `json:"attachment,omitempty"`
	Date        string            `json:"date"`
	CreatedBy   createdByResponse `json:"createdBy"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Amount:      tx.Amount.Float64(),
		PaymentType: string(tx.PaymentType),
		Note:        tx.Note,
		Attachment:  tx.Attachment,
		Date:        tx.Date.UTC().Format(dateLayout),
		CreatedBy: createdByResponse{
			ID:       tx.CreatedBy,
			Username: tx.CreatedByName,
		},
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
	}
}

func toTransactionResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return out
}

type daySummaryResponse struct {
	Date             string  `json:"date"`
	TotalSales       float64 `json:"totalSales"`
	TotalExpenses    float64 `json:"totalExpenses"`
	RemainingBalance float64 `json:"remainingBalance"`
	SalesCount       int64   `json:"salesCount"`
	ExpensesCount    int64   `json:"expensesCount"`
}

func toDaySummaryResponse(s core.DaySummary) daySummaryResponse {
	return daySummaryResponse{
		Date:             s.Date.UTC().Format(dateLayout),
		TotalSales:       s.TotalSales.Float64(),
		TotalExpenses:    s.TotalExpenses.Float64(),
		RemainingBalance: s.RemainingBalance().Float64(),
		SalesCount:       s.SalesCount,
		ExpensesCount:    s.ExpensesCount,
	}
}

type monthSummaryResponse struct {
	Period        string  `json:"period"`
	TotalSales    float64 `json:"totalSales"`
	TotalExpenses float64 `json:"totalExpenses"`
	NetProfit     float64 `json:"netProfit"`
}

func toMonthSummaryResponse(s core.MonthSummary) monthSummaryResponse {
	return monthSummaryResponse{
		Period:        s.Period(),
		TotalSales:    s.TotalSales.Float64(),
		TotalExpenses: s.TotalExpenses.Float64(),
		NetProfit:     s.NetProfit().Float64(),
	}
}
