// Package transaction provides the compensating-action coordinator used by
// the enrolment flows, plus scoped database-transaction helpers.
package transaction

import "go.uber.org/zap"

// Action is a deferred operation registered with a Transaction.
type Action func() error

// Transaction collects compensating actions while a unit of work makes
// progress, and unwinds them in reverse order if the unit of work fails.
// One Transaction belongs to exactly one invocation; it is not safe for
// concurrent use and must not be shared.
type Transaction struct {
	logger        *zap.SugaredLogger
	compensations []Action
	onSuccess     []func()
}

// New returns a coordinator for a single unit of work.
func New(logger *zap.SugaredLogger) *Transaction {
	return &Transaction{logger: logger}
}

// Compensate registers an action to run, LIFO, if the unit of work later
// fails. Actions must tolerate being called when the state they undo was
// never actually applied.
func (t *Transaction) Compensate(action Action) {
	t.compensations = append(t.compensations, action)
}

// OnSuccess registers a side effect to run only once the unit of work is
// confirmed committed. Success actions must not mutate state.
func (t *Transaction) OnSuccess(action func()) {
	t.onSuccess = append(t.onSuccess, action)
}

// Run executes fn. If fn returns an error, all registered compensations run
// in reverse-registration order and the original error is returned.
// Compensation failures are logged at error severity and never mask the
// triggering error. On success the OnSuccess actions run in order.
func Run(logger *zap.SugaredLogger, fn func(*Transaction) error) error {
	tran := New(logger)
	if err := fn(tran); err != nil {
		tran.rollback(err)
		return err
	}
	for _, action := range tran.onSuccess {
		action()
	}
	return nil
}

func (t *Transaction) rollback(cause error) {
	for i := len(t.compensations) - 1; i >= 0; i-- {
		if err := t.compensations[i](); err != nil {
			t.logger.Errorw("Compensating action failed, state may need manual cleanup",
				"compensationError", err, "cause", cause)
		}
	}
}
