package conversation

import (
	"errors"

	"github.com/teralab/chatorder/internal/apperr"
	"github.com/teralab/chatorder/internal/model"
	"github.com/teralab/chatorder/internal/session"
)

// recover maps a handler failure to a safe, choice-bearing message. A
// validation error re-prompts in place and changes nothing else; every
// other failure parks the conversation in error-recovery with the failed
// step saved, so "retry" can resume exactly where the user left off. Raw
// errors never reach the user; full context goes to the operator log.
func (e *Engine) recover(data *session.Data, input string, err error) *model.AssistantMessage {
	kind := apperr.Kind(err)

	if kind == apperr.KindValidation {
		return e.reply(data, userMessage(err))
	}

	e.log.Error("step handler failed",
		"session_id", data.ID,
		"step", data.CurrentStep,
		"input", input,
		"kind", kind,
		"error", err,
	)

	retry := model.Choice{Value: "retry", Label: "Retry"}
	restart := model.Choice{Value: "restart", Label: "Start over"}
	human := model.Choice{Value: "human", Label: "Talk to a human"}

	switch kind {
	case apperr.KindOutOfStock:
		// Recoverable in place: the draft was not mutated.
		return e.reply(data, "Sorry, that product is out of stock right now.")

	case apperr.KindPaymentProvider:
		// Stay on payment-method so the user can pick another provider.
		choices := append(providerChoices(), human)
		return e.reply(data,
			"That payment method is unavailable right now. Please pick another one.",
			choices...)

	case apperr.KindCollaborator, apperr.KindTimeout:
		if data.CurrentStep != session.StepErrorRecovery {
			data.RecoverStep = data.CurrentStep
			data.CurrentStep = session.StepErrorRecovery
		}
		return e.reply(data,
			"Something went wrong on our side while checking that. Want to retry?",
			retry, restart, human)

	default:
		if data.CurrentStep != session.StepErrorRecovery {
			data.RecoverStep = data.CurrentStep
			data.CurrentStep = session.StepErrorRecovery
		}
		return e.reply(data,
			"Sorry, something unexpected happened. You can retry or talk to a human.",
			retry, human)
	}
}

// userMessage extracts the user-facing text of a validation error.
func userMessage(err error) string {
	// Validation errors carry their re-prompt as the message; anything
	// else has been logged and gets the generic text.
	if apperr.IsValidation(err) {
		var base error = err
		for {
			u := errors.Unwrap(base)
			if u == nil {
				break
			}
			base = u
		}
		return "Please " + trimPlease(base.Error())
	}
	return "Sorry, something went wrong."
}

// trimPlease avoids "Please please ..." when the message already leads
// with it.
func trimPlease(msg string) string {
	const p = "please "
	if len(msg) >= len(p) && (msg[:len(p)] == p || msg[:len(p)] == "Please ") {
		return msg[len(p):]
	}
	return msg
}
