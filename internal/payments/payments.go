// Package payments mirrors events into Stripe: one product per event,
// one active price and one payment link for paid events. Products are
// deactivated rather than deleted so past purchases keep their
// references; prices are immutable on the provider side, so a price
// change retires the active price and creates a replacement.
package payments

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/allez-events/server/internal/domain/events"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Client talks to Stripe through the official API client. It satisfies
// events.PaymentMirror.
type Client struct {
	api       *client.API
	cdnPrefix string
}

func New(apiKey, cdnPrefix string) *Client {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &Client{api: api, cdnPrefix: strings.TrimRight(cdnPrefix, "/")}
}

// CreateProduct creates the Stripe product for an event and returns its
// id. Event details the checkout page should show travel as metadata.
func (c *Client) CreateProduct(ctx context.Context, event *events.Event) (string, error) {
	params := &stripe.ProductParams{
		Params:      stripe.Params{Context: ctx},
		Name:        stripe.String(event.Name),
		Description: stripe.String(event.Description),
	}
	if url := c.imageURL(event.ImageKey); url != "" {
		params.Images = stripe.StringSlice([]string{url})
	}
	for key, value := range productMetadata(event) {
		params.AddMetadata(key, value)
	}

	product, err := c.api.Products.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe product: %w", err)
	}
	return product.ID, nil
}

// CreatePrice creates a usd per-unit price on the product. The amount
// is given in dollars and stored in cents.
func (c *Client) CreatePrice(ctx context.Context, productID string, dollars float64) (string, error) {
	price, err := c.api.Prices.New(&stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(amountInCents(dollars)),
		Currency:   stripe.String(string(stripe.CurrencyUSD)),
	})
	if err != nil {
		return "", fmt.Errorf("create stripe price: %w", err)
	}
	return price.ID, nil
}

// CreatePaymentLink creates a shareable checkout link for one unit of
// the given price.
func (c *Client) CreatePaymentLink(ctx context.Context, priceID string) (string, error) {
	link, err := c.api.PaymentLinks.New(&stripe.PaymentLinkParams{
		Params: stripe.Params{Context: ctx},
		LineItems: []*stripe.PaymentLinkLineItemParams{{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("create stripe payment link: %w", err)
	}
	return link.URL, nil
}

// UpdateProduct pushes the event's current name, description, image and
// metadata to the product.
func (c *Client) UpdateProduct(ctx context.Context, event *events.Event) error {
	params := &stripe.ProductParams{
		Params:      stripe.Params{Context: ctx},
		Name:        stripe.String(event.Name),
		Description: stripe.String(event.Description),
	}
	if url := c.imageURL(event.ImageKey); url != "" {
		params.Images = stripe.StringSlice([]string{url})
	}
	for key, value := range productMetadata(event) {
		params.AddMetadata(key, value)
	}

	if _, err := c.api.Products.Update(event.StripeProductID, params); err != nil {
		return fmt.Errorf("update stripe product: %w", err)
	}
	return nil
}

// DeactivateProduct marks the product inactive. Its prices are retired
// first; Stripe refuses to archive a product with active prices
// attached to payment links in some configurations, and retired prices
// keep the provider state consistent either way.
func (c *Client) DeactivateProduct(ctx context.Context, productID string) error {
	if err := c.retirePrices(ctx, productID); err != nil {
		return err
	}
	if _, err := c.api.Products.Update(productID, &stripe.ProductParams{
		Params: stripe.Params{Context: ctx},
		Active: stripe.Bool(false),
	}); err != nil {
		return fmt.Errorf("deactivate stripe product: %w", err)
	}
	return nil
}

// ReplacePrice retires the product's active prices and, for a non-zero
// amount, creates the replacement and returns its id.
func (c *Client) ReplacePrice(ctx context.Context, productID string, dollars float64) (string, error) {
	if err := c.retirePrices(ctx, productID); err != nil {
		return "", err
	}
	if dollars == 0 {
		return "", nil
	}
	return c.CreatePrice(ctx, productID, dollars)
}

func (c *Client) retirePrices(ctx context.Context, productID string) error {
	iter := c.api.Prices.List(&stripe.PriceListParams{
		ListParams: stripe.ListParams{Context: ctx},
		Product:    stripe.String(productID),
		Active:     stripe.Bool(true),
	})
	for iter.Next() {
		price := iter.Price()
		if _, err := c.api.Prices.Update(price.ID, &stripe.PriceParams{
			Params: stripe.Params{Context: ctx},
			Active: stripe.Bool(false),
		}); err != nil {
			return fmt.Errorf("deactivate stripe price %s: %w", price.ID, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("list stripe prices: %w", err)
	}
	return nil
}

func (c *Client) imageURL(key string) string {
	if key == "" || c.cdnPrefix == "" {
		return ""
	}
	return c.cdnPrefix + "/" + key
}

func productMetadata(event *events.Event) map[string]string {
	return map[string]string{
		"categories": strings.Join(event.Categories, ","),
		"totalSeats": strconv.Itoa(event.TotalSeats),
		"hostId":     event.HostID,
		"minAge":     strconv.Itoa(event.MinAge),
		"eventDate":  event.EventDate.Format("2006-01-02"),
		"startTime":  event.StartTime,
		"endTime":    event.EndTime,
	}
}

func amountInCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}
