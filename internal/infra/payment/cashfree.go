package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"talent-exam-service/internal/app"
)

// Client talks to a Cashfree-style payment gateway. It is a black box from
// the platform's perspective: order creation returns a session token for the
// client-side checkout, verification reports the settled status.
type Client struct {
	baseURL    string
	clientID   string
	secret     string
	apiVersion string
	http       *http.Client
}

func NewClient(baseURL, clientID, secret string) *Client {
	return &Client{
		baseURL:    baseURL,
		clientID:   clientID,
		secret:     secret,
		apiVersion: "2022-09-01",
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

type createOrderRequest struct {
	OrderID       string  `json:"order_id"`
	OrderAmount   float64 `json:"order_amount"`
	OrderCurrency string  `json:"order_currency"`
	OrderNote     string  `json:"order_note,omitempty"`
}

type createOrderResponse struct {
	OrderID          string `json:"order_id"`
	PaymentSessionID string `json:"payment_session_id"`
}

func (c *Client) CreateOrder(ctx context.Context, amount float64, reference string) (app.PaymentOrder, error) {
	body, err := json.Marshal(createOrderRequest{
		OrderID:       "talent-" + reference,
		OrderAmount:   amount,
		OrderCurrency: "INR",
		OrderNote:     "talent exam booking " + reference,
	})
	if err != nil {
		return app.PaymentOrder{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pg/orders", bytes.NewReader(body))
	if err != nil {
		return app.PaymentOrder{}, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return app.PaymentOrder{}, fmt.Errorf("create order: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return app.PaymentOrder{}, fmt.Errorf("create order: gateway returned %s", resp.Status)
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return app.PaymentOrder{}, fmt.Errorf("decode order response: %w", err)
	}
	return app.PaymentOrder{OrderID: out.OrderID, SessionToken: out.PaymentSessionID}, nil
}

type orderStatusResponse struct {
	OrderStatus string `json:"order_status"`
}

func (c *Client) VerifyOrder(ctx context.Context, orderID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pg/orders/"+orderID, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("verify order: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("verify order: gateway returned %s", resp.Status)
	}

	var out orderStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode status response: %w", err)
	}
	return out.OrderStatus, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-client-secret", c.secret)
	req.Header.Set("x-api-version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")
}
