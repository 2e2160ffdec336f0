package scripting

// maxTransferDepth bounds recursion into nested containers so cyclic exported
// structures cannot hang validation.
const maxTransferDepth = 64

// validateTransferable checks that an exported script value is structurally
// safe to cross the worker boundary: primitives, or nested structures of
// primitives and script-native containers. Any handle to a host object is
// rejected, which is what keeps worker goroutines away from host mutable
// state.
func validateTransferable(v any) error {
	return validateTransferableDepth(v, 0)
}

func validateTransferableDepth(v any, depth int) error {
	if depth > maxTransferDepth {
		return newValidationError("argument nesting exceeds %d levels", maxTransferDepth)
	}
	switch x := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return nil
	case []any:
		for _, elem := range x {
			if err := validateTransferableDepth(elem, depth+1); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for _, elem := range x {
			if err := validateTransferableDepth(elem, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return newValidationError("value of type %T cannot cross the worker boundary", v)
	}
}
