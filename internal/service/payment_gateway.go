package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// PaymentOrder is what a gateway needs to charge or open a hosted session.
type PaymentOrder struct {
	OrderID   string
	UserID    string
	Amount    int64
	Currency  string
	CardToken string
	SaveCard  bool
}

// AuthorizationResult is returned by PaymentGateway.Authorize.
type AuthorizationResult struct {
	Approved          bool
	AuthorizationCode string
	DeclineReason     string
	CardToken         string
	CardBrand         string
	CardLast4         string
}

// PaymentSession describes a hosted checkout page.
type PaymentSession struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// PaymentGateway abstracts the payment provider.
type PaymentGateway interface {
	Name() string
	Authorize(ctx context.Context, order PaymentOrder) (*AuthorizationResult, error)
	CreateSession(ctx context.Context, order PaymentOrder) (*PaymentSession, error)
}

// SandboxDeclineToken makes the sandbox gateway decline a charge.
const SandboxDeclineToken = "tok_sandbox_decline"

// SandboxGateway approves every charge except SandboxDeclineToken. It is meant
// for development and tests.
type SandboxGateway struct {
	returnURL string
}

// NewSandboxGateway builds a sandbox gateway redirecting hosted sessions to returnURL.
func NewSandboxGateway(returnURL string) *SandboxGateway {
	return &SandboxGateway{returnURL: returnURL}
}

// Name implements PaymentGateway.
func (g *SandboxGateway) Name() string { return "sandbox" }

// Authorize implements PaymentGateway.
func (g *SandboxGateway) Authorize(_ context.Context, order PaymentOrder) (*AuthorizationResult, error) {
	if order.Amount < 0 {
		return nil, fmt.Errorf("sandbox authorize: negative amount %d", order.Amount)
	}
	if order.CardToken == SandboxDeclineToken {
		return &AuthorizationResult{Approved: false, DeclineReason: "card_declined"}, nil
	}
	code := strings.ToUpper(strings.ReplaceAll(order.OrderID, "-", ""))
	if len(code) > 8 {
		code = code[:8]
	}
	result := &AuthorizationResult{Approved: true, AuthorizationCode: "SBX-" + code}
	if order.SaveCard {
		result.CardToken = "tok_sbx_" + uuid.NewString()
		result.CardBrand = "VISA"
		result.CardLast4 = "4242"
	}
	return result, nil
}

// CreateSession implements PaymentGateway.
func (g *SandboxGateway) CreateSession(_ context.Context, order PaymentOrder) (*PaymentSession, error) {
	redirect, err := url.Parse(g.returnURL)
	if err != nil {
		return nil, fmt.Errorf("sandbox session: parse return url: %w", err)
	}
	q := redirect.Query()
	q.Set("order", order.OrderID)
	redirect.RawQuery = q.Encode()
	return &PaymentSession{SessionID: "sbx_sess_" + order.OrderID, RedirectURL: redirect.String()}, nil
}
