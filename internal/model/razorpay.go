package model

// RazorpayOrder is the gateway's representation of a charge intent.
type RazorpayOrder struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"` // paise
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"` // created, attempted, paid
}

type RazorpayError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type RazorpayPaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"` // captured, failed, authorized
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Email    string `json:"email"`
}

type RazorpayOrderEntity struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type RazorpayPaymentWrapper struct {
	Entity RazorpayPaymentEntity `json:"entity"`
}

type RazorpayOrderWrapper struct {
	Entity RazorpayOrderEntity `json:"entity"`
}

type RazorpayPayload struct {
	Payment RazorpayPaymentWrapper `json:"payment"`
	Order   RazorpayOrderWrapper   `json:"order"`
}

type RazorpayWebhookEvent struct {
	Entity    string          `json:"entity"`
	AccountID string          `json:"account_id"`
	Event     string          `json:"event"` // payment.captured, payment.failed, order.paid
	Contains  []string        `json:"contains"`
	Payload   RazorpayPayload `json:"payload"`
	CreatedAt int64           `json:"created_at"`
}

// MailMessage is a plaintext email handed to the mail client.
type MailMessage struct {
	To      string
	ReplyTo string
	Subject string
	Body    string
}
