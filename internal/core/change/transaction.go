package change

import (
	"fmt"

	"github.com/flowgraph/ruleeditor/internal/core/rule"
)

// Transaction is an ordered group of changes undone and redone as one unit
type Transaction struct {
	Changes []Change
}

// Apply applies all changes in order. If one fails, the changes applied so
// far are reverted and the graph is left as it was.
func (t Transaction) Apply(g *rule.Graph) error {
	for i, c := range t.Changes {
		if err := c.Apply(g); err != nil {
			for j := i - 1; j >= 0; j-- {
				// reverting a change that just succeeded cannot fail
				_ = t.Changes[j].Inverse().Apply(g)
			}
			return fmt.Errorf("apply %s: %w", c.Kind(), err)
		}
	}
	return nil
}

// Inverse returns the transaction that reverts t.
func (t Transaction) Inverse() Transaction {
	inv := make([]Change, len(t.Changes))
	for i, c := range t.Changes {
		inv[len(t.Changes)-1-i] = c.Inverse()
	}
	return Transaction{Changes: inv}
}

// Len returns the number of changes.
func (t Transaction) Len() int {
	return len(t.Changes)
}

// Log is the linear undo/redo history. The most recent transaction stays
// open, receiving further changes, until StartTransaction or an undo/redo
// closes it.
// PRINCIPLES:
// - SRP: Records history, never decides whether a change is allowed
type Log struct {
	undo []Transaction
	redo []Transaction
	open bool
}

// NewLog creates an empty history
func NewLog() *Log {
	return &Log{}
}

// StartTransaction closes the open transaction. The next recorded change
// starts a new one.
func (l *Log) StartTransaction() {
	l.open = false
}

// InTransaction reports whether recorded changes join an existing transaction.
func (l *Log) InTransaction() bool {
	return l.open
}

// Record appends an already applied change to the open transaction, opening
// one if needed. Recording discards the redo history.
func (l *Log) Record(c Change) {
	l.redo = nil
	if !l.open || len(l.undo) == 0 {
		l.undo = append(l.undo, Transaction{})
		l.open = true
	}
	top := &l.undo[len(l.undo)-1]
	top.Changes = append(top.Changes, c)
}

// RecordParameterChange records an applied parameter change. With autoStart
// the change either amends the previous change, when ShouldCoalesce allows
// it, or starts a new transaction.
func (l *Log) RecordParameterChange(c ChangeNodeParameter, autoStart bool) {
	if !autoStart {
		l.Record(c)
		return
	}
	if last, ok := l.Last(); ok && ShouldCoalesce(last, c, l.open) {
		l.redo = nil
		prev := last.(ChangeNodeParameter)
		prev.To = c.To
		top := &l.undo[len(l.undo)-1]
		top.Changes[len(top.Changes)-1] = prev
		return
	}
	l.StartTransaction()
	l.Record(c)
}

// ShouldCoalesce reports whether next may be merged into last: both change
// the same parameter of the same node and the transaction holding last is
// still open.
func ShouldCoalesce(last Change, next ChangeNodeParameter, open bool) bool {
	if !open {
		return false
	}
	prev, ok := last.(ChangeNodeParameter)
	return ok && prev.NodeID == next.NodeID && prev.ParameterID == next.ParameterID
}

// Last returns the most recently recorded change.
func (l *Log) Last() (Change, bool) {
	if len(l.undo) == 0 {
		return nil, false
	}
	top := l.undo[len(l.undo)-1]
	if len(top.Changes) == 0 {
		return nil, false
	}
	return top.Changes[len(top.Changes)-1], true
}

// CanUndo reports whether there is a transaction to undo.
func (l *Log) CanUndo() bool {
	return len(l.undo) > 0
}

// CanRedo reports whether there is a transaction to redo.
func (l *Log) CanRedo() bool {
	return len(l.redo) > 0
}

// UndoDepth returns the number of undoable transactions.
func (l *Log) UndoDepth() int {
	return len(l.undo)
}

// Undo reverts the last transaction on g. It returns false when there is
// nothing to undo. On error neither g nor the history change.
func (l *Log) Undo(g *rule.Graph) (bool, error) {
	if len(l.undo) == 0 {
		return false, nil
	}
	t := l.undo[len(l.undo)-1]
	if err := t.Inverse().Apply(g); err != nil {
		return false, fmt.Errorf("undo: %w", err)
	}
	l.undo = l.undo[:len(l.undo)-1]
	l.redo = append(l.redo, t)
	l.open = false
	return true, nil
}

// Redo re-applies the last undone transaction on g. It returns false when
// there is nothing to redo. On error neither g nor the history change.
func (l *Log) Redo(g *rule.Graph) (bool, error) {
	if len(l.redo) == 0 {
		return false, nil
	}
	t := l.redo[len(l.redo)-1]
	if err := t.Apply(g); err != nil {
		return false, fmt.Errorf("redo: %w", err)
	}
	l.redo = l.redo[:len(l.redo)-1]
	l.undo = append(l.undo, t)
	l.open = false
	return true, nil
}

// Clear drops the whole history.
func (l *Log) Clear() {
	l.undo, l.redo, l.open = nil, nil, false
}
