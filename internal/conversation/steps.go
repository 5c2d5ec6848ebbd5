package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/teralab/chatorder/internal/apperr"
	"github.com/teralab/chatorder/internal/model"
	"github.com/teralab/chatorder/internal/order"
	"github.com/teralab/chatorder/internal/payment"
	"github.com/teralab/chatorder/internal/session"
)

// handleStep dispatches on the current step. Handlers either accept the
// input and advance, or return an error for the recovery policy. The step
// pointer only moves on success.
func (e *Engine) handleStep(ctx context.Context, data *session.Data, text string) (*model.AssistantMessage, error) {
	switch data.CurrentStep {
	case session.StepContactInfo:
		return e.handleContactInfo(data, text)
	case session.StepCity:
		return e.handleCity(ctx, data, text)
	case session.StepAddress:
		return e.handleAddress(data, text)
	case session.StepPhone:
		return e.handlePhone(data, text)
	case session.StepSummary:
		return e.handleSummary(ctx, data, text)
	case session.StepPaymentMethod:
		return e.handlePaymentMethod(ctx, data, text)
	case session.StepPaymentProcessing:
		return e.handlePaymentProcessing(data), nil
	case session.StepPaymentCompleted:
		return e.confirmationMessage(data), nil
	case session.StepPaymentFailed:
		return e.handlePaymentFailed(data, text)
	case session.StepErrorRecovery:
		return e.handleErrorRecovery(data, text)
	default:
		return nil, fmt.Errorf("conversation: unknown step %q", data.CurrentStep)
	}
}

// handleContactInfo splits the input into first name and last name. At
// least two whitespace-separated tokens are required; everything after the
// first joins into the last name.
func (e *Engine) handleContactInfo(data *session.Data, text string) (*model.AssistantMessage, error) {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return nil, apperr.Validation("provide first and last name")
	}
	data.Order.Customer.FirstName = tokens[0]
	data.Order.Customer.LastName = strings.Join(tokens[1:], " ")
	data.CurrentStep = session.StepCity

	return e.reply(data, fmt.Sprintf(
		"Thanks %s! Which city should we deliver to?", data.Order.Customer.FirstName)), nil
}

// handleCity records the city and resolves the delivery fee before
// advancing.
func (e *Engine) handleCity(ctx context.Context, data *session.Data, text string) (*model.AssistantMessage, error) {
	city := strings.TrimSpace(text)
	if city == "" {
		return nil, apperr.Validation("please tell me your city")
	}

	fee, err := e.delivery.GetCost(ctx, city)
	if err != nil {
		return nil, apperr.Collaborator("delivery pricing", err)
	}

	data.Order.Customer.City = city
	data.Order.DeliveryFee = fee
	data.Order.Recompute()
	data.CurrentStep = session.StepAddress

	feeNote := fmt.Sprintf("Delivery to %s costs %s.", city, e.amount(fee))
	if fee == 0 {
		feeNote = fmt.Sprintf("Good news, delivery to %s is free!", city)
	}
	return e.reply(data, feeNote+" What is your delivery address?"), nil
}

// handleAddress requires at least five characters after trimming.
func (e *Engine) handleAddress(data *session.Data, text string) (*model.AssistantMessage, error) {
	address := strings.TrimSpace(text)
	if len(address) < 5 {
		return nil, apperr.Validation("provide a complete address")
	}
	data.Order.Customer.Address = address
	data.CurrentStep = session.StepPhone

	return e.reply(data, "Almost done! What phone number can we reach you on?"), nil
}

// handlePhone strips spaces and requires at least nine digits.
func (e *Engine) handlePhone(data *session.Data, text string) (*model.AssistantMessage, error) {
	phone := strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	if len(phone) < 9 || !digitsOnly(phone) {
		return nil, apperr.Validation("provide a valid phone number")
	}
	data.Order.Customer.Phone = phone
	data.CurrentStep = session.StepSummary

	return e.summaryMessage(data), nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// handleSummary is the binary confirm/modify gate, plus the explicit item
// actions: "add <product>" folds a cross-sell candidate into the order,
// "remove <product>" drops a line, and "qty <product> <n>" replaces a
// line's quantity. Quantity increases re-check stock first.
func (e *Engine) handleSummary(ctx context.Context, data *session.Data, text string) (*model.AssistantMessage, error) {
	input := strings.ToLower(strings.TrimSpace(text))
	switch {
	case input == "confirmed":
		if data.Order.Status.CanTransition(order.StatusAwaitingPayment) {
			data.Order.Status = order.StatusAwaitingPayment
		}
		if err := e.persist.Save(ctx, data.ID, &data.Order); err != nil {
			return nil, apperr.Collaborator("order save", err)
		}
		data.CurrentStep = session.StepPaymentMethod
		return e.reply(data, "How would you like to pay?", providerChoices()...), nil

	case input == "modify":
		data.Order.ResetCustomer()
		data.CurrentStep = session.StepContactInfo
		return e.reply(data, "No problem, let's start over. May I have your first and last name?"), nil

	case strings.HasPrefix(input, "add "):
		return e.handleAddItem(ctx, data, strings.TrimSpace(input[len("add "):]))

	case strings.HasPrefix(input, "remove "):
		return e.handleRemoveItem(ctx, data, strings.TrimSpace(input[len("remove "):]))

	case strings.HasPrefix(input, "qty "):
		return e.handleSetQuantity(ctx, data, strings.TrimSpace(input[len("qty "):]))

	default:
		return nil, apperr.Validation(`please answer "confirmed" or "modify"`)
	}
}

// handleAddItem re-checks stock through the inventory collaborator before
// mutating the draft, and re-shows the summary.
func (e *Engine) handleAddItem(ctx context.Context, data *session.Data, ref string) (*model.AssistantMessage, error) {
	product, err := e.catalog.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	wanted := data.Order.Quantity(product.ID) + 1
	available, err := e.inventory.CheckAvailability(ctx, product.ID, wanted)
	if err != nil {
		return nil, apperr.Collaborator("inventory check", err)
	}
	if !available {
		return nil, apperr.ErrOutOfStock
	}
	data.Order.AddItem(product.ID, product.Name, product.Price, 1)
	return e.summaryMessage(data), nil
}

// handleRemoveItem drops one line from the draft. Removal frees stock, so
// no inventory check is needed, but the order may not end up empty.
func (e *Engine) handleRemoveItem(ctx context.Context, data *session.Data, ref string) (*model.AssistantMessage, error) {
	product, err := e.catalog.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if data.Order.Quantity(product.ID) == 0 {
		return nil, apperr.Validation("that product is not in your order")
	}
	if len(data.Order.Items) == 1 {
		return nil, apperr.Validation("keep at least one item in your order")
	}
	data.Order.RemoveItem(product.ID)
	return e.summaryMessage(data), nil
}

// handleSetQuantity replaces a line's quantity. An increase re-checks
// stock through the inventory collaborator and fails without mutating
// when refused; a decrease always succeeds.
func (e *Engine) handleSetQuantity(ctx context.Context, data *session.Data, rest string) (*model.AssistantMessage, error) {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return nil, apperr.Validation(`use "qty <product> <number>"`)
	}
	quantity, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || quantity < 1 {
		return nil, apperr.Validation(`use "qty <product> <number>"`)
	}
	product, err := e.catalog.Resolve(ctx, strings.Join(fields[:len(fields)-1], " "))
	if err != nil {
		return nil, err
	}
	current := data.Order.Quantity(product.ID)
	if current == 0 {
		return nil, apperr.Validation("that product is not in your order")
	}
	if quantity > current {
		available, err := e.inventory.CheckAvailability(ctx, product.ID, quantity)
		if err != nil {
			return nil, apperr.Collaborator("inventory check", err)
		}
		if !available {
			return nil, apperr.ErrOutOfStock
		}
	}
	if err := data.Order.SetQuantity(product.ID, quantity); err != nil {
		return nil, apperr.Validation("that product is not in your order")
	}
	return e.summaryMessage(data), nil
}

// handlePaymentMethod initiates payment with the chosen provider. Cash
// confirms synchronously; the redirect providers leave a pending attempt
// under reconciliation and return a processing acknowledgment.
func (e *Engine) handlePaymentMethod(ctx context.Context, data *session.Data, text string) (*model.AssistantMessage, error) {
	provider, err := payment.ParseProvider(strings.ToLower(strings.TrimSpace(text)))
	if err != nil {
		return nil, apperr.Validation("choose a payment method from the list")
	}

	attempt, err := e.gateway.Initiate(ctx, provider, payment.InitRequest{
		OrderID:  data.Order.ID,
		Amount:   data.Order.Total,
		Currency: e.currency,
		Customer: data.Order.Customer,
	})
	if err != nil {
		return nil, err
	}

	data.SupersedePayment(&attempt)
	if err := e.persist.RecordAttempt(ctx, data.Order.ID, attempt); err != nil {
		e.log.Error("record attempt failed", "order_id", data.Order.ID, "error", err)
	}

	if attempt.Status == payment.StatusCompleted {
		// Cash on delivery: the one path with no asynchronous leg.
		return e.completeOrder(ctx, data), nil
	}

	if e.watcher == nil {
		return nil, apperr.Provider(string(provider), fmt.Errorf("reconciliation unavailable"))
	}
	if err := e.watcher.Watch(data.ID, attempt.TransactionID); err != nil {
		attempt.Status = payment.StatusFailed
		attempt.Reason = "subscription failed"
		data.Payment = &attempt
		data.CurrentStep = session.StepPaymentFailed
		e.log.Error("payment watch failed",
			"session_id", data.ID, "transaction_id", attempt.TransactionID, "error", err)
		return e.reply(data,
			"We hit a connection problem while preparing your payment. Please retry.",
			model.Choice{Value: "retry", Label: "Retry"},
		), nil
	}

	data.PaymentPending = true
	data.CurrentStep = session.StepPaymentProcessing

	msg := e.reply(data, fmt.Sprintf(
		"Perfect! Open this link to finish your %s payment: %s\nI will confirm here as soon as the payment goes through.",
		provider.Label(), attempt.CheckoutURL))
	return msg, nil
}

// handlePaymentProcessing answers status queries while the attempt is
// under reconciliation.
func (e *Engine) handlePaymentProcessing(data *session.Data) *model.AssistantMessage {
	return e.reply(data,
		"Your payment is still processing. I will confirm here the moment it completes.")
}

// handlePaymentFailed offers the retry path back to payment-method.
func (e *Engine) handlePaymentFailed(data *session.Data, text string) (*model.AssistantMessage, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "retry":
		if data.Order.Status.CanTransition(order.StatusAwaitingPayment) {
			data.Order.Status = order.StatusAwaitingPayment
		}
		data.CurrentStep = session.StepPaymentMethod
		return e.reply(data, "Let's try again. How would you like to pay?", providerChoices()...), nil
	case "modify":
		data.Order.ResetCustomer()
		data.CurrentStep = session.StepContactInfo
		return e.reply(data, "Let's start over. May I have your first and last name?"), nil
	default:
		return nil, apperr.Validation(`please answer "retry" or "modify"`)
	}
}

// handleErrorRecovery resumes the step saved when the failure happened.
func (e *Engine) handleErrorRecovery(data *session.Data, text string) (*model.AssistantMessage, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "retry":
		step := data.RecoverStep
		if step == "" {
			step = session.StepContactInfo
		}
		data.CurrentStep = step
		data.RecoverStep = ""
		return e.reply(data, reprompt(step)), nil
	case "restart":
		data.Order.ResetCustomer()
		data.CurrentStep = session.StepContactInfo
		data.RecoverStep = ""
		return e.reply(data, "Let's start over. May I have your first and last name?"), nil
	default:
		return nil, apperr.Validation(`please answer "retry" or "restart"`)
	}
}
