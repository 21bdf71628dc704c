package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/internal/orders"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/money"
)

// VerifyInput is the checkout callback the client forwards after paying.
type VerifyInput struct {
	OrderID          uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Intent is what the client needs to open the gateway checkout.
type Intent struct {
	OrderID        uuid.UUID `json:"order_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	AmountCents    int64     `json:"amount_cents"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	KeyID          string    `json:"key_id"`
	Receipt        string    `json:"receipt"`
}

// TransactionDTO is the stored audit record, without the signature.
type TransactionDTO struct {
	ID               uuid.UUID                      `json:"id"`
	OrderID          uuid.UUID                      `json:"order_id"`
	GatewayOrderID   string                         `json:"gateway_order_id"`
	GatewayPaymentID string                         `json:"gateway_payment_id"`
	AmountCents      int64                          `json:"amount_cents"`
	Amount           string                         `json:"amount"`
	Currency         enums.Currency                 `json:"currency"`
	Status           enums.PaymentTransactionStatus `json:"status"`
	CreatedAt        time.Time                      `json:"created_at"`
}

// Verification is the outcome of a successful payment.
type Verification struct {
	Transaction TransactionDTO   `json:"transaction"`
	Order       *orders.OrderDTO `json:"order"`
}

func transactionFromModel(t *models.PaymentTransaction) TransactionDTO {
	return TransactionDTO{
		ID:               t.ID,
		OrderID:          t.OrderID,
		GatewayOrderID:   t.GatewayOrderID,
		GatewayPaymentID: t.GatewayPaymentID,
		AmountCents:      t.AmountCents,
		Amount:           money.Format(t.AmountCents),
		Currency:         t.Currency,
		Status:           t.Status,
		CreatedAt:        t.CreatedAt,
	}
}
