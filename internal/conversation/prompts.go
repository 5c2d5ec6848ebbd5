package conversation

import (
	"fmt"
	"strings"

	"github.com/teralab/chatorder/internal/model"
	"github.com/teralab/chatorder/internal/payment"
	"github.com/teralab/chatorder/internal/session"
)

// reply builds an AssistantMessage whose metadata reflects the session
// after the handler ran.
func (e *Engine) reply(data *session.Data, text string, choices ...model.Choice) *model.AssistantMessage {
	md := model.Metadata{
		SessionID: data.ID,
		NextStep:  string(data.CurrentStep),
	}
	if data.Payment != nil {
		md.PaymentStatus = string(data.Payment.Status)
		md.TransactionID = data.Payment.TransactionID
		if data.CurrentStep == session.StepPaymentProcessing {
			md.CheckoutURL = data.Payment.CheckoutURL
		}
	}
	return &model.AssistantMessage{
		Text:     text,
		Choices:  choices,
		Metadata: md,
	}
}

// summaryMessage renders the order recap with the confirm/modify choices.
func (e *Engine) summaryMessage(data *session.Data) *model.AssistantMessage {
	s := data.Order.Summary()

	var b strings.Builder
	b.WriteString("Here is your order summary:\n")
	for _, line := range s.Lines {
		fmt.Fprintf(&b, "- %s x%d: %s\n", line.Name, line.Quantity, e.amount(line.LineTotal))
	}
	fmt.Fprintf(&b, "Subtotal: %s\n", e.amount(s.Subtotal))
	if s.DeliveryFee == 0 {
		b.WriteString("Delivery: free\n")
	} else {
		fmt.Fprintf(&b, "Delivery: %s\n", e.amount(s.DeliveryFee))
	}
	fmt.Fprintf(&b, "Total: %s\n", e.amount(s.Total))
	fmt.Fprintf(&b, "Deliver to %s, %s, %s (phone %s).\n",
		s.Customer.FullName(), s.Customer.Address, s.Customer.City, s.Customer.Phone)
	b.WriteString("You can adjust items with \"add <product>\", \"remove <product>\", or \"qty <product> <number>\".\n")
	b.WriteString(`Reply "confirmed" to proceed to payment, or "modify" to re-enter your details.`)

	return e.reply(data, b.String(),
		model.Choice{Value: "confirmed", Label: "Confirm"},
		model.Choice{Value: "modify", Label: "Modify my details"},
	)
}

// confirmationMessage is the terminal success message. It repeats the
// delivery address so the customer can double-check it.
func (e *Engine) confirmationMessage(data *session.Data) *model.AssistantMessage {
	c := data.Order.Customer
	text := fmt.Sprintf(
		"Your order is confirmed! We will deliver to %s, %s. Total: %s. Thank you %s!",
		c.Address, c.City, e.amount(data.Order.Total), c.FirstName)
	if data.Payment != nil && data.Payment.Provider == payment.ProviderCash {
		text = fmt.Sprintf(
			"Your order is confirmed! You pay %s on delivery. We will deliver to %s, %s. Thank you %s!",
			e.amount(data.Order.Total), c.Address, c.City, c.FirstName)
	}
	return e.reply(data, text)
}

// paymentFailedMessage explains the failure cause where known and always
// offers a way forward.
func (e *Engine) paymentFailedMessage(data *session.Data, reason string) *model.AssistantMessage {
	text := "Your payment did not go through."
	if reason == payment.ReasonTimeout {
		text = "We did not receive a payment confirmation in time."
	}
	return e.reply(data, text+` Reply "retry" to try another payment method.`,
		model.Choice{Value: "retry", Label: "Retry payment"},
		model.Choice{Value: "modify", Label: "Change my details"},
	)
}

// providerChoices lists the payment methods in presentation order.
func providerChoices() []model.Choice {
	out := make([]model.Choice, 0, len(payment.Providers))
	for _, p := range payment.Providers {
		out = append(out, model.Choice{Value: string(p), Label: p.Label()})
	}
	return out
}

// reprompt returns the question to re-ask when resuming a step.
func reprompt(step session.Step) string {
	switch step {
	case session.StepContactInfo:
		return "May I have your first and last name?"
	case session.StepCity:
		return "Which city should we deliver to?"
	case session.StepAddress:
		return "What is your delivery address?"
	case session.StepPhone:
		return "What phone number can we reach you on?"
	case session.StepSummary:
		return `Reply "confirmed" to proceed to payment, or "modify" to re-enter your details.`
	case session.StepPaymentMethod:
		return "How would you like to pay?"
	default:
		return "Let's continue with your order."
	}
}
