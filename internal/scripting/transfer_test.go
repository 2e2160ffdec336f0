package scripting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransferable_Primitives(t *testing.T) {
	t.Parallel()

	for _, v := range []any{nil, true, "s", int64(1), 1.5, int32(2), uint8(3)} {
		assert.NoError(t, validateTransferable(v), "%T", v)
	}
}

func TestValidateTransferable_Containers(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateTransferable([]any{int64(1), "two", []any{3.0}}))
	assert.NoError(t, validateTransferable(map[string]any{
		"nested": map[string]any{"deep": []any{nil, false}},
	}))
}

func TestValidateTransferable_RejectsHostHandles(t *testing.T) {
	t.Parallel()

	type hostThing struct{ state int }
	cases := []any{
		&hostThing{},
		hostThing{},
		func() {},
		make(chan int),
		[]any{int64(1), &hostThing{}},
		map[string]any{"ok": "yes", "bad": func() {}},
	}
	for _, v := range cases {
		err := validateTransferable(v)
		assert.Error(t, err, "%T", v)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "%T", v)
	}
}

func TestValidateTransferable_DepthBound(t *testing.T) {
	t.Parallel()

	// A self-referencing container must fail instead of hanging.
	cyclic := map[string]any{}
	cyclic["self"] = cyclic
	assert.Error(t, validateTransferable(cyclic))
}
