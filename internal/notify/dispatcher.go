// Package notify delivers best-effort order emails from a background worker.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"lupora-api/internal/client"
	"lupora-api/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderPlaced is published once an order has been committed.
type OrderPlaced struct {
	Order         *model.Order
	CustomerName  string
	CustomerEmail string
}

type Publisher interface {
	Publish(event OrderPlaced)
}

type Dispatcher struct {
	mailer       client.MailClient
	ownerAddress string
	sendTimeout  time.Duration
	enabled      bool
	log          *zap.Logger

	queue chan OrderPlaced
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type Options struct {
	OwnerAddress string
	QueueSize    int
	SendTimeout  time.Duration
	Enabled      bool
}

func NewDispatcher(mailer client.MailClient, opts Options, log *zap.Logger) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 15 * time.Second
	}
	return &Dispatcher{
		mailer:       mailer,
		ownerAddress: opts.OwnerAddress,
		sendTimeout:  opts.SendTimeout,
		enabled:      opts.Enabled && mailer != nil && opts.OwnerAddress != "",
		log:          log.Named("notify"),
		queue:        make(chan OrderPlaced, opts.QueueSize),
	}
}

// Publish never blocks. Events are dropped when the queue is full, the
// dispatcher is closed, or mail is not configured.
func (d *Dispatcher) Publish(event OrderPlaced) {
	if !d.enabled {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("dispatcher closed, dropping notification", zap.String("order_id", event.Order.ID))
		return
	}

	select {
	case d.queue <- event:
	default:
		d.log.Warn("notification queue full, dropping", zap.String("order_id", event.Order.ID))
	}
}

// Start runs the worker until ctx is cancelled or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	if !d.enabled {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-d.queue:
				if !ok {
					return
				}
				d.deliver(ctx, event)
			}
		}
	}()
}

// Close stops accepting events and waits for queued ones to be sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, event OrderPlaced) {
	messages := []model.MailMessage{
		ownerMessage(d.ownerAddress, event),
		customerMessage(d.ownerAddress, event),
	}

	for _, msg := range messages {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err := d.mailer.Send(sendCtx, msg)
		cancel()

		if err != nil {
			d.log.Error("send notification",
				zap.String("order_id", event.Order.ID),
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			continue
		}
		d.log.Info("notification sent",
			zap.String("order_id", event.Order.ID),
			zap.String("subject", msg.Subject),
		)
	}
}

func ownerMessage(owner string, event OrderPlaced) model.MailMessage {
	order := event.Order
	addr := order.ShippingAddress

	var b strings.Builder
	fmt.Fprintf(&b, "A new order has been placed on Lupora.\n\n")
	fmt.Fprintf(&b, "Order ID: %s\n", order.ID)
	fmt.Fprintf(&b, "Placed at: %s\n", order.CreatedAt.Format(time.RFC1123))
	fmt.Fprintf(&b, "Customer: %s <%s>\n", event.CustomerName, event.CustomerEmail)
	fmt.Fprintf(&b, "Payment: %s (%s)\n\n", order.PaymentMethod, order.PaymentStatus)
	writeItems(&b, order)
	fmt.Fprintf(&b, "\nShip to:\n%s\n%s\n%s, %s %s\nPhone: %s\n",
		addr.FullName, addr.Address, addr.City, addr.State, addr.Pincode, addr.Phone)

	return model.MailMessage{
		To:      owner,
		Subject: fmt.Sprintf("New order %s from %s", order.ID, event.CustomerName),
		Body:    b.String(),
	}
}

// customerMessage goes to the owner, who forwards it; replies reach the customer.
func customerMessage(owner string, event OrderPlaced) model.MailMessage {
	order := event.Order

	var b strings.Builder
	fmt.Fprintf(&b, "Forward to: %s <%s>\n\n", event.CustomerName, event.CustomerEmail)
	fmt.Fprintf(&b, "Hi %s,\n\nThank you for shopping with Lupora. Your order %s has been placed.\n\n",
		event.CustomerName, order.ID)
	writeItems(&b, order)
	fmt.Fprintf(&b, "\nWe will let you know when it ships.\n")

	return model.MailMessage{
		To:      owner,
		ReplyTo: event.CustomerEmail,
		Subject: fmt.Sprintf("Order confirmation %s for %s", order.ID, event.CustomerEmail),
		Body:    b.String(),
	}
}

func writeItems(b *strings.Builder, order *model.Order) {
	for _, item := range order.Items {
		subtotal := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		fmt.Fprintf(b, "- %s x%d @ Rs %s = Rs %s\n",
			item.Name, item.Quantity,
			decimal.NewFromFloat(item.Price).StringFixed(2),
			subtotal.StringFixed(2))
	}
	fmt.Fprintf(b, "Total: Rs %s\n", decimal.NewFromFloat(order.TotalAmount).StringFixed(2))
}
