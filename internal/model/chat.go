// Package model defines the request and response payloads used by the API.
// It keeps transport-level types in one place for reuse.
package model

// ChatRequest is the input payload for a single user turn.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

// Choice is one actionable option offered to the user alongside a message.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Metadata carries machine-readable context for the chat UI. The UI never
// inspects engine state beyond this block.
type Metadata struct {
	SessionID       string           `json:"session_id"`
	NextStep        string           `json:"next_step"`
	PaymentStatus   string           `json:"payment_status,omitempty"`
	TransactionID   string           `json:"transaction_id,omitempty"`
	CheckoutURL     string           `json:"checkout_url,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// Recommendation is a cross-sell candidate surfaced to the UI.
type Recommendation struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	Priority  int    `json:"priority"`
}

// AssistantMessage is the single response type of the conversation engine.
type AssistantMessage struct {
	Text     string   `json:"text"`
	Choices  []Choice `json:"choices,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// CallbackRequest is the payload posted by payment providers to report a
// terminal outcome for a transaction.
type CallbackRequest struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"` // "success"; any other value is a failure
	Reason        string `json:"reason,omitempty"`
}

// ErrorPayload describes an error response.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}
