package types

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UserType represents user role levels.
type UserType string

const (
	UserTypeStudent    UserType = "student"
	UserTypeInstructor UserType = "instructor"
	UserTypeAdmin      UserType = "admin"
	UserTypeAll        UserType = "all"
)

// IsStaff reports whether the role may author courses.
func (u UserType) IsStaff() bool {
	return u == UserTypeInstructor || u == UserTypeAdmin
}

// PaymentMethod records how an enrollment was paid for. Gateways are external;
// only the method, amount and an opaque reference are stored.
type PaymentMethod string

const (
	PaymentMethodFree         PaymentMethod = "free"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodStripe       PaymentMethod = "stripe"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCrypto       PaymentMethod = "crypto"
	PaymentMethodOther        PaymentMethod = "other"
)

// ParsePaymentMethod returns the method and whether it is known.
func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(value)))
	switch method {
	case PaymentMethodFree, PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodStripe,
		PaymentMethodBankTransfer, PaymentMethodCrypto, PaymentMethodOther:
		return method, true
	default:
		return "", false
	}
}

// BaseModel contains common fields for all models.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// BeforeCreate assigns an id on the application side so sqlite and postgres behave the same.
func (m *BaseModel) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Money wraps decimal.Decimal for money values.
type Money decimal.Decimal

// NewMoney creates Money from float64.
func NewMoney(value float64) Money {
	return Money(decimal.NewFromFloat(value))
}

// NewMoneyFromString creates Money from string.
func NewMoneyFromString(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, err
	}
	return Money(d), nil
}

func (m Money) String() string { return decimal.Decimal(m).String() }

// Float64 returns the float64 representation.
func (m Money) Float64() float64 { return decimal.Decimal(m).InexactFloat64() }

// IsZero returns true if value is zero.
func (m Money) IsZero() bool { return decimal.Decimal(m).IsZero() }

// IsNegative returns true if value is below zero.
func (m Money) IsNegative() bool { return decimal.Decimal(m).IsNegative() }

// Equal compares two amounts.
func (m Money) Equal(other Money) bool { return decimal.Decimal(m).Equal(decimal.Decimal(other)) }

// LessThan returns true if m < other.
func (m Money) LessThan(other Money) bool {
	return decimal.Decimal(m).LessThan(decimal.Decimal(other))
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return decimal.Decimal(m).Value()
}

// Scan implements sql.Scanner.
func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	*m = Money(d)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return decimal.Decimal(m).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = Money(d)
	return nil
}
