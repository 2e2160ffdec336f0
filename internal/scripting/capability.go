package scripting

import "github.com/dop251/goja"

// ThreadSafeBinding is a zero-behavior marker wrapping a host binding that is
// safe to invoke from a worker goroutine. Tagging is additive and cannot fail;
// an untagged binding simply never appears in a CapabilitySnapshot, so worker
// callbacks cannot reach it at all.
type ThreadSafeBinding struct {
	value any
}

// MarkThreadSafe tags a host binding as safe to call off the tick goroutine.
// Only side-effect-bounded callables (logging, reads of immutable snapshots)
// should be tagged.
func MarkThreadSafe(value any) *ThreadSafeBinding {
	return &ThreadSafeBinding{value: value}
}

// IsThreadSafe reports whether a binding value carries the thread-safe tag.
func IsThreadSafe(value any) bool {
	_, ok := value.(*ThreadSafeBinding)
	return ok
}

// Value returns the wrapped binding.
func (b *ThreadSafeBinding) Value() any {
	return b.value
}

// hostBinding is one named value exposed into script scopes, in registration
// order.
type hostBinding struct {
	name  string
	value any
}

// CapabilitySnapshot is the frozen set of thread-safe host bindings a worker
// callback is permitted to see. It is computed eagerly when the script scope
// is constructed: bindings are considered in registration order and the first
// occurrence of each name wins, so later registrations never shadow earlier
// ones.
type CapabilitySnapshot struct {
	bindings map[string]any
	names    []string
}

func newCapabilitySnapshot(bindings []hostBinding) *CapabilitySnapshot {
	snap := &CapabilitySnapshot{bindings: make(map[string]any)}
	for _, b := range bindings {
		tagged, ok := b.value.(*ThreadSafeBinding)
		if !ok {
			continue
		}
		if _, exists := snap.bindings[b.name]; exists {
			continue
		}
		snap.bindings[b.name] = tagged.Value()
		snap.names = append(snap.names, b.name)
	}
	return snap
}

// Names returns the binding names in the snapshot, in capture order.
func (s *CapabilitySnapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Has reports whether the named binding is visible to worker callbacks.
func (s *CapabilitySnapshot) Has(name string) bool {
	_, ok := s.bindings[name]
	return ok
}

// install sets every snapshot binding as a global in the given (worker-owned)
// runtime. Names absent from the snapshot are simply undefined there, so a
// worker callback referencing them fails with an ordinary ReferenceError.
func (s *CapabilitySnapshot) install(vm *goja.Runtime) error {
	for _, name := range s.names {
		if err := vm.Set(name, s.bindings[name]); err != nil {
			return err
		}
	}
	return nil
}
