package core

import (
	"errors"
	"strings"
	"time"
)

const (
	KindSale    Kind = "sale"
	KindExpense Kind = "expense"
)

const (
	Cash         PaymentType = "Cash"
	BankTransfer PaymentType = "Bank Transfer"
	Cheque       PaymentType = "Cheque"
)

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type (
	// Kind discriminates the two record collections. A transaction is
	// always exactly one of sale or expense.
	Kind string

	// PaymentType is the fixed set of accepted payment methods.
	PaymentType string

	// Role controls what a caller may do: users create and read,
	// admins additionally update and delete.
	Role string

	Money struct {
		Cents int64
	}

	// Transaction is the shared shape of a Sale or an Expense.
	Transaction struct {
		ID            int64
		Kind          Kind
		Amount        Money
		PaymentType   PaymentType
		Note          string
		Attachment    string // stored filename, empty when absent
		Date          time.Time
		CreatedBy     int64
		CreatedByName string
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	User struct {
		ID           int64
		Username     string
		PasswordHash string
		Role         Role
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrInvalidPaymentType = errors.New("invalid payment type")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidRole        = errors.New("invalid role")
	ErrEmptyUsername      = errors.New("empty username")
)

func (k Kind) Validate() error {
	switch k {
	case KindSale, KindExpense:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (p PaymentType) Validate() error {
	switch p {
	case Cash, BankTransfer, Cheque:
		return nil
	default:
		return ErrInvalidPaymentType
	}
}

func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAdmin:
		return nil
	default:
		return ErrInvalidRole
	}
}

func (t Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.PaymentType.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(t.Note) > 500 {
		return errors.New("note too long (max 500 characters)")
	}
	if t.CreatedBy <= 0 {
		return errors.New("missing creator")
	}
	return nil
}

func (u User) Validate() error {
	if len(strings.TrimSpace(u.Username)) == 0 {
		return ErrEmptyUsername
	}
	if len(u.Username) > 50 {
		return errors.New("username too long (max 50 characters)")
	}
	if u.PasswordHash == "" {
		return errors.New("missing password hash")
	}
	return u.Role.Validate()
}

// IsAdmin reports whether the user may run admin-only operations.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// StartOfDay truncates t to midnight UTC of the same calendar day.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthRange returns the [start, end) bounds of a calendar month in UTC.
func MonthRange(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
