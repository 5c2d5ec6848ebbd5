package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/teralab/chatorder/internal/order"
)

// InitRequest carries everything an adapter needs to open a checkout.
type InitRequest struct {
	OrderID  string
	Amount   int64
	Currency string
	Customer order.Customer
}

// InitResult is the uniform initiation outcome. Completed is true only for
// providers with no asynchronous leg (cash on delivery).
type InitResult struct {
	TransactionID string
	CheckoutURL   string
	Completed     bool
}

// Adapter opens a checkout with one concrete provider. Implementations must
// not leak provider-specific fields upward.
type Adapter interface {
	Provider() Provider
	Initiate(ctx context.Context, req InitRequest) (InitResult, error)
}

// postJSON posts in as JSON and decodes the response body into out.
// Non-2xx responses are returned as errors.
func postJSON(ctx context.Context, client *http.Client, url, bearer string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WaveAdapter opens Wave checkout sessions. The customer finishes the
// payment in the Wave app via the returned launch URL.
type WaveAdapter struct {
	BaseURL    string
	APIKey     string
	SuccessURL string
	ErrorURL   string
	Client     *http.Client
}

// Provider implements Adapter.
func (a *WaveAdapter) Provider() Provider { return ProviderWave }

// Initiate implements Adapter.
func (a *WaveAdapter) Initiate(ctx context.Context, req InitRequest) (InitResult, error) {
	in := struct {
		Amount          string `json:"amount"`
		Currency        string `json:"currency"`
		ClientReference string `json:"client_reference"`
		SuccessURL      string `json:"success_url"`
		ErrorURL        string `json:"error_url"`
	}{
		Amount:          strconv.FormatInt(req.Amount, 10),
		Currency:        req.Currency,
		ClientReference: req.OrderID,
		SuccessURL:      a.SuccessURL,
		ErrorURL:        a.ErrorURL,
	}
	var out struct {
		ID            string `json:"id"`
		WaveLaunchURL string `json:"wave_launch_url"`
	}
	if err := postJSON(ctx, a.client(), a.BaseURL+"/v1/checkout/sessions", a.APIKey, in, &out); err != nil {
		return InitResult{}, fmt.Errorf("wave checkout: %w", err)
	}
	if out.ID == "" || out.WaveLaunchURL == "" {
		return InitResult{}, fmt.Errorf("wave checkout: incomplete response")
	}
	return InitResult{TransactionID: out.ID, CheckoutURL: out.WaveLaunchURL}, nil
}

func (a *WaveAdapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// OrangeMoneyAdapter opens Orange Money web payments. The returned payment
// URL is shown to the customer as a redirect target.
type OrangeMoneyAdapter struct {
	BaseURL     string
	MerchantKey string
	ReturnURL   string
	CancelURL   string
	NotifURL    string
	Client      *http.Client
}

// Provider implements Adapter.
func (a *OrangeMoneyAdapter) Provider() Provider { return ProviderOrangeMoney }

// Initiate implements Adapter.
func (a *OrangeMoneyAdapter) Initiate(ctx context.Context, req InitRequest) (InitResult, error) {
	in := struct {
		MerchantKey string `json:"merchant_key"`
		Currency    string `json:"currency"`
		OrderID     string `json:"order_id"`
		Amount      int64  `json:"amount"`
		ReturnURL   string `json:"return_url"`
		CancelURL   string `json:"cancel_url"`
		NotifURL    string `json:"notif_url"`
		Lang        string `json:"lang"`
	}{
		MerchantKey: a.MerchantKey,
		Currency:    req.Currency,
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		ReturnURL:   a.ReturnURL,
		CancelURL:   a.CancelURL,
		NotifURL:    a.NotifURL,
		Lang:        "fr",
	}
	var out struct {
		PaymentURL string `json:"payment_url"`
		PayToken   string `json:"pay_token"`
	}
	if err := postJSON(ctx, a.client(), a.BaseURL+"/webpayment", "", in, &out); err != nil {
		return InitResult{}, fmt.Errorf("orange money webpayment: %w", err)
	}
	if out.PayToken == "" || out.PaymentURL == "" {
		return InitResult{}, fmt.Errorf("orange money webpayment: incomplete response")
	}
	return InitResult{TransactionID: out.PayToken, CheckoutURL: out.PaymentURL}, nil
}

func (a *OrangeMoneyAdapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// CardAdapter opens a hosted card checkout embeddable as an iframe.
type CardAdapter struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// Provider implements Adapter.
func (a *CardAdapter) Provider() Provider { return ProviderCard }

// Initiate implements Adapter.
func (a *CardAdapter) Initiate(ctx context.Context, req InitRequest) (InitResult, error) {
	in := struct {
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Reference string `json:"reference"`
		Customer  string `json:"customer"`
	}{
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reference: req.OrderID,
		Customer:  req.Customer.FullName(),
	}
	var out struct {
		Token       string `json:"token"`
		CheckoutURL string `json:"checkout_url"`
	}
	if err := postJSON(ctx, a.client(), a.BaseURL+"/v1/payments", a.APIKey, in, &out); err != nil {
		return InitResult{}, fmt.Errorf("card checkout: %w", err)
	}
	if out.Token == "" || out.CheckoutURL == "" {
		return InitResult{}, fmt.Errorf("card checkout: incomplete response")
	}
	return InitResult{TransactionID: out.Token, CheckoutURL: out.CheckoutURL}, nil
}

func (a *CardAdapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// CashAdapter confirms orders paid on delivery. There is no external call
// and no asynchronous leg; initiation completes synchronously.
type CashAdapter struct{}

// Provider implements Adapter.
func (CashAdapter) Provider() Provider { return ProviderCash }

// Initiate implements Adapter.
func (CashAdapter) Initiate(_ context.Context, _ InitRequest) (InitResult, error) {
	return InitResult{
		TransactionID: "cash-" + uuid.NewString(),
		Completed:     true,
	}, nil
}
