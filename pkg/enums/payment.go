package enums

// PaymentMethod records how an order was paid.
type PaymentMethod string

const (
	PaymentMethodRazorpay PaymentMethod = "razorpay"
)

// PaymentTransactionStatus is the gateway-reported outcome stored on the audit record.
type PaymentTransactionStatus string

const (
	PaymentTransactionSuccess PaymentTransactionStatus = "success"
)

// Currency is the single supported settlement currency.
type Currency string

const (
	CurrencyINR Currency = "INR"
)
