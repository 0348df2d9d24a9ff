// Package conversation implements the checkout and subscription dialogs as
// explicit state machines. Steps are enum values, every legal move lives in
// one transition table, and the in-flight draft is a typed struct attached to
// the user session. Rendering to Telegram happens elsewhere.
package conversation

import (
	"fmt"

	"github.com/aquapure/waterbot/core/telegram/state"
)

// Step is a dialog position. The string form doubles as the FSM state key.
type Step state.State

// Checkout flow steps.
const (
	StepIdle       Step = Step(state.StateIdle)
	StepCart       Step = "checkout:cart"
	StepQuantity   Step = "checkout:quantity"
	StepAddress    Step = "checkout:address"
	StepNewAddress Step = "checkout:new_address"
	StepSlot       Step = "checkout:slot"
	StepPayment    Step = "checkout:payment"
	StepConfirm    Step = "checkout:confirm"
)

// Subscription flow steps.
const (
	StepSubProduct   Step = "subscribe:product"
	StepSubFrequency Step = "subscribe:frequency"
	StepSubQuantity  Step = "subscribe:quantity"
	StepSubConfirm   Step = "subscribe:confirm"
)

// Action is a user or system event that may move the dialog forward.
type Action string

const (
	ActionStart        Action = "start"
	ActionPickProduct  Action = "pick_product"
	ActionQuantitySet  Action = "quantity_set"
	ActionRemoveLine   Action = "remove_line"
	ActionToCheckout   Action = "to_checkout"
	ActionPickAddress  Action = "pick_address"
	ActionNewAddress   Action = "new_address"
	ActionAddressSaved Action = "address_saved"
	ActionPickSlot     Action = "pick_slot"
	ActionPickPayment  Action = "pick_payment"
	ActionConfirm      Action = "confirm"
	ActionStockRetry   Action = "stock_retry"
	ActionSlotRetry    Action = "slot_retry"
	ActionPaymentRetry Action = "payment_retry"
	ActionCancel       Action = "cancel"
	ActionSubStart     Action = "sub_start"
	ActionSubProduct   Action = "sub_product"
	ActionSubQuantity  Action = "sub_quantity"
	ActionSubFrequency Action = "sub_frequency"
	ActionSubPlaced    Action = "sub_placed"
)

type move struct {
	from   Step
	action Action
}

// transitions is the complete map of legal dialog moves. Anything absent is
// rejected; a stale callback can never skip a step.
var transitions = map[move]Step{
	{StepIdle, ActionStart}: StepCart,

	{StepCart, ActionPickProduct}:     StepQuantity,
	{StepQuantity, ActionQuantitySet}: StepCart,
	{StepCart, ActionRemoveLine}:      StepCart,
	{StepCart, ActionToCheckout}:      StepAddress,

	{StepAddress, ActionPickAddress}:     StepSlot,
	{StepAddress, ActionNewAddress}:      StepNewAddress,
	{StepNewAddress, ActionAddressSaved}: StepSlot,

	{StepSlot, ActionPickSlot}:       StepPayment,
	{StepPayment, ActionPickPayment}: StepConfirm,

	{StepConfirm, ActionConfirm}: StepIdle,
	// Commit-time failures bounce back without losing the draft.
	{StepConfirm, ActionStockRetry}:   StepCart,
	{StepConfirm, ActionSlotRetry}:    StepSlot,
	{StepConfirm, ActionPaymentRetry}: StepPayment,

	{StepIdle, ActionSubStart}:             StepSubProduct,
	{StepSubProduct, ActionSubProduct}:     StepSubFrequency,
	{StepSubFrequency, ActionSubFrequency}: StepSubQuantity,
	{StepSubQuantity, ActionSubQuantity}:   StepSubConfirm,
	{StepSubConfirm, ActionSubPlaced}:      StepIdle,
}

// Next resolves the step after applying action at cur. Cancel is legal from
// any step and always returns to idle.
func Next(cur Step, action Action) (Step, error) {
	if action == ActionCancel {
		return StepIdle, nil
	}
	next, ok := transitions[move{cur, action}]
	if !ok {
		return cur, fmt.Errorf("conversation: no transition from %q via %q", cur, action)
	}
	return next, nil
}

// State converts a step to the session manager's state key.
func (s Step) State() state.State { return state.State(s) }
