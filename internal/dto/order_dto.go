package dto

import "github.com/foodcourt/storefront-api/internal/models"

type CreateOrderResponse struct {
	Order          *models.Order `json:"order"`
	GatewayOrderID string        `json:"gateway_order_id"`
	GatewayKeyID   string        `json:"gateway_key_id"`
	Amount         int64         `json:"amount"`
	Currency       string        `json:"currency"`
}

type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" validate:"required,max=64"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required,max=64"`
	Signature        string `json:"signature" validate:"required,hexadecimal,max=128"`
}
