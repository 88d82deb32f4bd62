package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/runtime"
	"github.com/wippyai/wasm-bridge/types"
)

func newTestSession(t *testing.T, kind engine.Kind) *session {
	t.Helper()
	ctx := context.Background()
	sess, err := newSession(ctx, &runtime.Config{Backend: kind})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close(ctx) })
	return sess
}

func TestSession_Demos(t *testing.T) {
	for _, kind := range []engine.Kind{engine.Naive, engine.Interpreter} {
		t.Run(kind.String(), func(t *testing.T) {
			ctx := context.Background()
			sess := newTestSession(t, kind)

			var names []string
			for _, e := range sess.list() {
				names = append(names, e.name)
			}
			require.Equal(t, []string{"add", "counter", "fdiv", "g0", "mul"}, names)

			out, err := sess.call(ctx, "add", []string{"2", "3"})
			require.NoError(t, err)
			require.Equal(t, "i32:5", formatValues(out))

			out, err = sess.call(ctx, "mul", []string{"6", "7"})
			require.NoError(t, err)
			require.Equal(t, int64(42), out[0].I64())

			_, err = sess.call(ctx, "fdiv", []string{"1", "0"})
			require.ErrorIs(t, err, errors.ErrTrap)

			for want := int64(1); want <= 2; want++ {
				out, err = sess.call(ctx, "counter", nil)
				require.NoError(t, err)
				require.Equal(t, want, out[0].I64())
			}

			out, err = sess.call(ctx, "g0", []string{"7"})
			require.NoError(t, err)
			require.Equal(t, int32(7), out[0].I32())
			out, err = sess.call(ctx, "g0", nil)
			require.NoError(t, err)
			require.Equal(t, int32(7), out[0].I32())

			_, err = sess.call(ctx, "add", []string{"1"})
			require.ErrorIs(t, err, errors.ErrArityMismatch)
			_, err = sess.call(ctx, "missing", nil)
			require.ErrorIs(t, err, errors.ErrNotFound)
		})
	}
}

func TestParseValue(t *testing.T) {
	v, err := parseValue(types.I32, "-5")
	require.NoError(t, err)
	require.Equal(t, int32(-5), v.I32())

	v, err = parseValue(types.I64, "0x10")
	require.NoError(t, err)
	require.Equal(t, int64(16), v.I64())

	v, err = parseValue(types.F32, "0x7fc00001")
	require.NoError(t, err)
	require.Equal(t, uint32(0x7fc00001), v.F32Bits())

	v, err = parseValue(types.F64, "2.5")
	require.NoError(t, err)
	require.Equal(t, 2.5, v.F64())

	v, err = parseValue(types.V128, "0x1:ff")
	require.NoError(t, err)
	require.Equal(t, types.Vec128{Lo: 0xff, Hi: 1}, v.V128())

	v, err = parseValue(types.ExternRef, "null")
	require.NoError(t, err)
	require.True(t, v.IsNull())

	_, err = parseValue(types.I32, "nope")
	require.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = parseValue(types.I32, "4294967296")
	require.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = parseValue(types.FuncRef, "f")
	require.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, runtime.DefaultConfig().Backend, cfg.Backend)

	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"backend: naive\nmemory_limit_pages: 16\nclose_on_context_done: true\n"), 0o600))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, engine.Naive, cfg.Backend)
	require.Equal(t, uint32(16), cfg.Engine.MemoryLimitPages)
	require.True(t, cfg.Engine.CloseOnContextDone)

	require.NoError(t, os.WriteFile(path, []byte("backend: steam\n"), 0o600))
	_, err = loadConfig(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("unknown_field: 1\n"), 0o600))
	_, err = loadConfig(path)
	require.Error(t, err)
}

func TestRun_CallAndMetrics(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), options{
		backend: "naive",
		call:    "add",
		args:    "40,2",
		metrics: true,
	}, &stdout, &stderr)
	require.NoError(t, err)
	require.Equal(t, "Result: i32:42\n", stdout.String())
	require.Contains(t, stderr.String(), "wasmbridge_calls_total{backend=naive,outcome=ok} 1")
}

func TestRun_ListAndTrace(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), options{backend: "naive", list: true}, &stdout, &stderr)
	require.NoError(t, err)
	require.Contains(t, stdout.String(), "add")
	require.Contains(t, stdout.String(), "(i32, i32) -> (i32)")
	require.Contains(t, stdout.String(), "global (i32)")

	stdout.Reset()
	err = run(context.Background(), options{backend: "naive", call: "mul", args: "3,4", trace: true}, &stdout, &stderr)
	require.NoError(t, err)
	require.Contains(t, stderr.String(), "wasmbridge.call")

	err = run(context.Background(), options{backend: "naive", interactive: true}, &stdout, &stderr)
	require.Error(t, err)

	err = run(context.Background(), options{backend: "bogus", list: true}, &stdout, &stderr)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestInteractiveModel(t *testing.T) {
	sess := newTestSession(t, engine.Naive)
	m := newInteractiveModel(sess)
	require.Equal(t, "add", m.entries[0].name)

	// enter on add opens two argument fields
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(*interactiveModel)
	require.Equal(t, stateInputArgs, m.state)
	require.Len(t, m.inputs, 2)

	m.inputs[0].SetValue("20")
	m.inputs[1].SetValue("22")
	msg := m.callFunction()
	next, _ = m.Update(msg)
	m = next.(*interactiveModel)
	require.Equal(t, stateShowResult, m.state)
	require.NoError(t, m.err)
	require.Equal(t, "i32:42", m.result)
	require.Contains(t, m.View(), "i32:42")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(*interactiveModel)
	require.Equal(t, stateSelectFunc, m.state)
	require.Contains(t, m.View(), "g0")
}
