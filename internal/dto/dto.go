package dto

import "lupora-api/internal/model"

// -------- auth --------

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,min=2,max=50"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=128"`
}

type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AuthResponse struct {
	Message string     `json:"message,omitempty"`
	Token   string     `json:"token"`
	User    PublicUser `json:"user"`
}

// -------- cart --------

type AddToCartRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
}

type UpdateCartRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"max=99"` // <= 0 removes the line
}

type CartLine struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// CartView is derived at read time; totals are never persisted.
type CartView struct {
	Items      []CartLine `json:"items"`
	TotalItems int        `json:"totalItems"`
	TotalPrice float64    `json:"totalPrice"`
}

type CartResponse struct {
	Message string `json:"message,omitempty"`
	CartView
}

// -------- orders --------

type ShippingAddress struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"required,len=10,digits"`
	Address  string `json:"address" validate:"required,max=255"`
	City     string `json:"city" validate:"required,max=64"`
	State    string `json:"state" validate:"required,max=64"`
	Pincode  string `json:"pincode" validate:"required,len=6,digits"`
}

type PlaceOrderRequest struct {
	ShippingAddress   ShippingAddress `json:"shippingAddress"`
	PaymentMethod     string          `json:"paymentMethod" validate:"required,oneof=cod razorpay gateway"`
	RazorpayOrderID   string          `json:"razorpayOrderId" validate:"max=64"`
	RazorpayPaymentID string          `json:"razorpayPaymentId" validate:"max=64"`
}

type PlaceOrderResponse struct {
	Message string       `json:"message"`
	OrderID string       `json:"orderId"`
	Order   *model.Order `json:"order"`
}

// -------- payment --------

type CreatePaymentRequest struct {
	Amount float64 `json:"amount"`
}

type CreatePaymentResponse struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"` // paise
	Currency string `json:"currency"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

type VerifyPaymentResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

// -------- reviews --------

type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
