package loader_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lenML/pflow/pkg/loader"
	"github.com/lenML/pflow/pkg/shared"
)

func newShared() *shared.Shared {
	return shared.New(shared.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestLoad_BuildsAndRunsPipeline(t *testing.T) {
	def := []byte(`
name: greet
start: first
nodes:
  - id: first
    uses: set
    params:
      key: greeting
      value: hello
    next:
      default: second
  - id: second
    uses: set
    params:
      key: subject
      value: world
`)

	f, err := loader.Load(def, loader.Builtins())
	require.NoError(t, err)
	assert.Equal(t, "greet", f.Kinds()[0])

	sc := newShared()
	_, err = f.Run(context.Background(), sc)
	require.NoError(t, err)

	greeting, _ := sc.Get("greeting")
	subject, _ := sc.Get("subject")
	assert.Equal(t, "hello", greeting)
	assert.Equal(t, "world", subject)
}

func TestLoad_ActionEdges(t *testing.T) {
	def := []byte(`
start: router
nodes:
  - id: router
    uses: set
    params: {key: routed, value: true}
    next:
      default: done
      retry: router
  - id: done
    uses: echo
    params: {message: finished}
`)

	f, err := loader.Load(def, loader.Builtins())
	require.NoError(t, err)

	start := f.Start()
	next, ok := start.Successor("retry")
	require.True(t, ok)
	assert.Same(t, start, next)
}

func TestLoad_UnknownEdgeTarget(t *testing.T) {
	def := []byte(`
start: a
nodes:
  - id: a
    uses: echo
    next:
      default: ghost
`)

	_, err := loader.Load(def, loader.Builtins())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoad_UnknownNodeType(t *testing.T) {
	def := []byte(`
start: a
nodes:
  - id: a
    uses: teleport
`)

	_, err := loader.Load(def, loader.Builtins())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestLoad_MissingStart(t *testing.T) {
	def := []byte(`
nodes:
  - id: a
    uses: echo
`)

	_, err := loader.Load(def, loader.Builtins())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start")
}

func TestLoad_DuplicateNodeID(t *testing.T) {
	def := []byte(`
start: a
nodes:
  - id: a
    uses: echo
  - id: a
    uses: echo
`)

	_, err := loader.Load(def, loader.Builtins())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestBuiltins_DelayDecodesDuration(t *testing.T) {
	def := []byte(`
start: pause
nodes:
  - id: pause
    uses: delay
    params:
      duration: 20ms
`)

	f, err := loader.Load(def, loader.Builtins())
	require.NoError(t, err)

	sc := newShared()
	start := time.Now()
	_, err = f.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestBuiltins_SetRequiresKey(t *testing.T) {
	def := []byte(`
start: a
nodes:
  - id: a
    uses: set
    params: {value: orphan}
`)

	_, err := loader.Load(def, loader.Builtins())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key is required")
}
