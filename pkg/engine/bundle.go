package engine

import (
	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
)

// ActionGroup is the result of one ApplyActions call (§4.7/§4.8): the
// bundle a caller would persist plus the bundle needed to undo it.
type ActionGroup struct {
	// Stored is the action list recorded to the document's action log:
	// the input actions as given, in the order they were applied.
	Stored []action.Action
	// Calc is every formula cell recomputation triggered by applying
	// Stored, in dependency order.
	Calc []action.Action
	// Undo reverses Stored and Calc together, in the order required to
	// restore the prior document state.
	Undo []action.Action
}

// ApplyActions applies every action in actions against the document as one
// batch (§4.7 "apply_user_actions"): each action is applied through
// ApplyDataAction, which returns its own exact inverse, then Calculate runs
// the recalculation loop to a fixed point, recording every recomputed cell
// into one shared Summary. Stored echoes the actions actually applied;
// Calc is the formula recomputation that followed; Undo reverses the calc
// effects first, then the direct actions in reverse order (§4.8 "inverse
// actions are accumulated in reverse order of application"). If an action
// fails, the inverses of the actions already applied are applied in reverse
// order before the error is returned; cells the failing action itself wrote
// before it failed are not restored.
func (d *Document) ApplyActions(actions []action.Action) (*ActionGroup, error) {
	sum := actionsummary.New()
	inverses := make([]action.Action, 0, len(actions))
	for _, a := range actions {
		inv, err := d.ApplyDataAction(a, sum)
		if err != nil {
			for i := len(inverses) - 1; i >= 0; i-- {
				_, _ = d.ApplyDataAction(inverses[i], nil)
			}
			return nil, err
		}
		inverses = append(inverses, inv)
	}
	d.Calculate(sum)

	undo := append([]action.Action(nil), sum.UndoActions()...)
	for i := len(inverses) - 1; i >= 0; i-- {
		undo = append(undo, inverses[i])
	}

	return &ActionGroup{
		Stored: append([]action.Action(nil), actions...),
		Calc:   sum.CalcActions(),
		Undo:   undo,
	}, nil
}
