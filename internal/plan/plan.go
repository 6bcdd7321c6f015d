// Package plan diffs the migrations on disk against the applied ledger and
// produces the ordered steps to run. It never touches the database.
package plan

import (
	"fmt"
	"sort"

	"github.com/loykin/sqlrun/internal/script"
)

// Direction of a step or plan.
type Direction string

const (
	Forward Direction = "forward"
	Reverse Direction = "reverse"
)

// Step is one record to run in one direction.
type Step struct {
	Record    script.Record
	Direction Direction
}

// Operation returns the function the step runs.
func (s Step) Operation() script.Operation {
	if s.Direction == Reverse {
		return s.Record.Reverse
	}
	return s.Record.Forward
}

// Plan is an ordered, single-use list of steps.
type Plan struct {
	Direction Direction
	Steps     []Step
}

// Empty reports whether the plan has nothing to do.
func (p Plan) Empty() bool { return len(p.Steps) == 0 }

// Keys returns the sequence keys in execution order.
func (p Plan) Keys() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Record.Key
	}
	return out
}

// Verify checks that p still applies to the applied keys: forward steps must
// be pending and reverse steps applied.
func (p Plan) Verify(applied []string) error {
	done := make(map[string]struct{}, len(applied))
	for _, k := range applied {
		done[k] = struct{}{}
	}
	for _, s := range p.Steps {
		_, ok := done[s.Record.Key]
		switch {
		case s.Direction == Forward && ok:
			return fmt.Errorf("%w: %s is already applied", ErrStalePlan, s.Record.Filename)
		case s.Direction == Reverse && !ok:
			return fmt.Errorf("%w: %s is not applied", ErrStalePlan, s.Record.Filename)
		}
	}
	return nil
}

// Filenames returns the script file names in execution order.
func (p Plan) Filenames() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Record.Filename
	}
	return out
}

type index struct {
	records []script.Record
	byKey   map[string]script.Record
	applied map[string]bool
	// keys applied in the ledger, ascending
	appliedKeys []string
}

func newIndex(records []script.Record, applied []string) (*index, error) {
	sorted := append([]script.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	ix := &index{
		records:     sorted,
		byKey:       make(map[string]script.Record, len(sorted)),
		applied:     make(map[string]bool, len(applied)),
		appliedKeys: make([]string, 0, len(applied)),
	}
	for _, r := range sorted {
		if prev, ok := ix.byKey[r.Key]; ok {
			return nil, &DuplicateSequenceKeyError{Key: r.Key, Filenames: []string{prev.Filename, r.Filename}}
		}
		ix.byKey[r.Key] = r
	}
	for _, k := range applied {
		if !ix.applied[k] {
			ix.applied[k] = true
			ix.appliedKeys = append(ix.appliedKeys, k)
		}
	}
	sort.Strings(ix.appliedKeys)
	return ix, nil
}

func (ix *index) resolve(target string) (script.Record, error) {
	for _, r := range ix.records {
		if r.Matches(target) {
			return r, nil
		}
	}
	return script.Record{}, &UnknownTargetError{Target: target}
}

func (ix *index) pending(limit string) []Step {
	var steps []Step
	for _, r := range ix.records {
		if limit != "" && r.Key > limit {
			break
		}
		if !ix.applied[r.Key] {
			steps = append(steps, Step{Record: r, Direction: Forward})
		}
	}
	return steps
}

// reverse maps applied keys, newest first, back to their records.
func (ix *index) reverse(keys []string) ([]Step, error) {
	steps := make([]Step, 0, len(keys))
	var orphans []string
	for i := len(keys) - 1; i >= 0; i-- {
		r, ok := ix.byKey[keys[i]]
		if !ok {
			orphans = append(orphans, keys[i])
			continue
		}
		steps = append(steps, Step{Record: r, Direction: Reverse})
	}
	if len(orphans) > 0 {
		return nil, &OrphanedHistoryEntryError{Keys: orphans}
	}
	return steps, nil
}

// Upgrade plans every record not yet applied, in ascending key order.
func Upgrade(records []script.Record, applied []string) (Plan, error) {
	ix, err := newIndex(records, applied)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Direction: Forward, Steps: ix.pending("")}, nil
}

// UpgradeTo plans pending records up to and including target, which may be a
// file name or a sequence key.
func UpgradeTo(records []script.Record, applied []string, target string) (Plan, error) {
	ix, err := newIndex(records, applied)
	if err != nil {
		return Plan{}, err
	}
	t, err := ix.resolve(target)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Direction: Forward, Steps: ix.pending(t.Key)}, nil
}

// DowngradeBy plans the reversal of the n most recently applied migrations,
// newest first. n larger than the applied set reverses everything.
func DowngradeBy(records []script.Record, applied []string, n int) (Plan, error) {
	if n < 0 {
		return Plan{}, ErrInvalidCount
	}
	ix, err := newIndex(records, applied)
	if err != nil {
		return Plan{}, err
	}
	if n > len(ix.appliedKeys) {
		n = len(ix.appliedKeys)
	}
	steps, err := ix.reverse(ix.appliedKeys[len(ix.appliedKeys)-n:])
	if err != nil {
		return Plan{}, err
	}
	return Plan{Direction: Reverse, Steps: steps}, nil
}

// DowngradeTo plans the reversal of every applied migration newer than
// target. When inclusive is set the target itself is reversed too, leaving
// the migration before it as the newest applied one; otherwise the target
// stays applied.
func DowngradeTo(records []script.Record, applied []string, target string, inclusive bool) (Plan, error) {
	ix, err := newIndex(records, applied)
	if err != nil {
		return Plan{}, err
	}
	t, err := ix.resolve(target)
	if err != nil {
		return Plan{}, err
	}
	if !ix.applied[t.Key] {
		return Plan{}, &TargetNotAppliedError{Target: target, Key: t.Key}
	}
	idx := sort.SearchStrings(ix.appliedKeys, t.Key)
	if !inclusive {
		idx++
	}
	steps, err := ix.reverse(ix.appliedKeys[idx:])
	if err != nil {
		return Plan{}, err
	}
	return Plan{Direction: Reverse, Steps: steps}, nil
}
