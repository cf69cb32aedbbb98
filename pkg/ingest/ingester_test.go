package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapestrylab/weft/pkg/domain"
	"github.com/tapestrylab/weft/pkg/ports"
)

// scriptedGenerator returns one pre-recorded stream per round and keeps
// the requests it saw for assertions on repair prompts.
type scriptedGenerator struct {
	rounds   []string
	requests []ports.GenerateRequest
}

func (g *scriptedGenerator) Generate(_ context.Context, req ports.GenerateRequest) (io.ReadCloser, error) {
	g.requests = append(g.requests, req)
	if len(g.requests) > len(g.rounds) {
		return io.NopCloser(strings.NewReader("")), nil
	}
	return io.NopCloser(strings.NewReader(g.rounds[len(g.requests)-1])), nil
}

const validStream = `{"op":"replace","path":"/root","value":"a"}
{"op":"add","path":"/nodes/a","value":{"type":"text","props":{"content":"hi"}}}
`

func TestRun_CleanStream(t *testing.T) {
	gen := &scriptedGenerator{rounds: []string{validStream}}
	ing := New(gen)

	res, err := ing.Run(context.Background(), ports.GenerateRequest{Prompt: "make ui"})

	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, "a", res.Spec.Root)
	require.NotNil(t, res.Spec.Node("a"))
	assert.Equal(t, "text", res.Spec.Node("a").Type)
}

func TestRun_CommentaryAndCommentsHaveNoEffect(t *testing.T) {
	stream := "Let me build that for you.\n" +
		"# progress note\n" +
		"// another note\n" +
		"\n" +
		validStream
	gen := &scriptedGenerator{rounds: []string{stream}}
	ing := New(gen)

	res, err := ing.Run(context.Background(), ports.GenerateRequest{})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Zero(t, res.Recovered)
	assert.Empty(t, res.Malformed)
}

func TestRun_MetaLineCaptured(t *testing.T) {
	stream := validStream + `{"__meta":{"tokens":42}}` + "\n"
	gen := &scriptedGenerator{rounds: []string{stream}}
	ing := New(gen)

	res, err := ing.Run(context.Background(), ports.GenerateRequest{})

	require.NoError(t, err)
	require.NotNil(t, res.Usage)
	meta := res.Usage["__meta"].(map[string]any)
	assert.Equal(t, float64(42), meta["tokens"])
	assert.Equal(t, 2, res.Applied)
}

func TestRecoverLine_StripBounds(t *testing.T) {
	base := `{"op":"replace","path":"/root","value":"a"}`

	for strips := 1; strips <= 3; strips++ {
		line := base + strings.Repeat("}", strips)
		clean, n, err := recoverLine(line)
		require.NoError(t, err, "line with %d extra brackets", strips)
		assert.Equal(t, base, clean)
		assert.Equal(t, strips, n)
	}

	// A fourth trailing bracket exceeds the recovery bound.
	_, _, err := recoverLine(base + "}}}}")
	assert.Error(t, err)

	// Corruption that is not trailing brackets is never stripped.
	_, _, err = recoverLine(`{"op":"add","path":`)
	assert.Error(t, err)
}

func TestRun_RecoversTrailingBrackets(t *testing.T) {
	stream := `{"op":"replace","path":"/root","value":"a"}}` + "\n" +
		`{"op":"add","path":"/nodes/a","value":{"type":"text"}}]` + "\n"
	gen := &scriptedGenerator{rounds: []string{stream}}
	ing := New(gen)

	res, err := ing.Run(context.Background(), ports.GenerateRequest{})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Recovered)
	assert.Equal(t, 2, res.Applied)
	assert.True(t, res.Valid)
}

func TestRun_MalformedAbortsAndRepairs(t *testing.T) {
	bad := `{"op":"add","path":"/nodes/a","val` + "\n"
	gen := &scriptedGenerator{rounds: []string{
		`{"op":"replace","path":"/root","value":"a"}` + "\n" + bad,
		`{"op":"add","path":"/nodes/a","value":{"type":"text"}}` + "\n",
	}}
	ing := New(gen)

	res, err := ing.Run(context.Background(), ports.GenerateRequest{Prompt: "p"})

	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 2, res.Rounds)

	// The repair request carries the partial document and the bad line.
	require.Len(t, gen.requests, 2)
	repair := gen.requests[1]
	assert.Contains(t, repair.Prompt, "unparseable line")
	assert.Equal(t, "a", repair.CurrentSpec.Root)
}

func TestRun_ValidationFailureTriggersRepair(t *testing.T) {
	gen := &scriptedGenerator{rounds: []string{
		// Root points at a node that is never defined.
		`{"op":"replace","path":"/root","value":"missing"}` + "\n",
		`{"op":"add","path":"/nodes/missing","value":{"type":"text"}}` + "\n",
	}}
	ing := New(gen)

	res, err := ing.Run(context.Background(), ports.GenerateRequest{})

	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 2, res.Rounds)
	assert.Contains(t, gen.requests[1].Prompt, "structural errors")
}

func TestRun_BudgetBoundsTotalRounds(t *testing.T) {
	// Every round ends on the same unparseable line; the loop must stop
	// after maxRetries+1 generation calls.
	bad := `{"op":"add","broken` + "\n"
	gen := &scriptedGenerator{rounds: []string{bad, bad, bad, bad, bad}}
	ing := New(gen, WithMaxRetries(2))

	res, err := ing.Run(context.Background(), ports.GenerateRequest{})

	assert.ErrorIs(t, err, domain.ErrRetriesExhausted)
	assert.Equal(t, 3, res.Rounds)
	assert.Len(t, gen.requests, 3)
	assert.NotNil(t, res.Spec)
}

func TestRun_ValidationExhaustionKeepsPartialDoc(t *testing.T) {
	round := `{"op":"replace","path":"/root","value":"ghost"}` + "\n"
	gen := &scriptedGenerator{rounds: []string{round, round}}
	ing := New(gen, WithMaxRetries(1))

	res, err := ing.Run(context.Background(), ports.GenerateRequest{})

	assert.ErrorIs(t, err, domain.ErrRetriesExhausted)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Issues)
	require.NotNil(t, res.Spec)
	assert.Equal(t, "ghost", res.Spec.Root)
}

func TestRun_WithoutValidationSkipsMalformed(t *testing.T) {
	stream := `{"op":"replace","path":"/root","value":"a"}` + "\n" +
		`{"op":"add","broken` + "\n" +
		`{"op":"add","path":"/nodes/a","value":{"type":"text"}}` + "\n"
	gen := &scriptedGenerator{rounds: []string{stream}}
	ing := New(gen, WithoutValidation())

	res, err := ing.Run(context.Background(), ports.GenerateRequest{})

	require.NoError(t, err)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, 2, res.Applied)
	require.Len(t, res.Malformed, 1)
}

func TestRun_TransportFailureSurfacesWithPartialDoc(t *testing.T) {
	boom := errors.New("connection refused")
	gen := ports.GeneratorFunc(func(context.Context, ports.GenerateRequest) (io.ReadCloser, error) {
		return nil, boom
	})
	ing := New(gen)

	seed := domain.NewSpec()
	seed.Root = "a"
	res, err := ing.Run(context.Background(), ports.GenerateRequest{CurrentSpec: seed})

	assert.ErrorIs(t, err, boom)
	require.NotNil(t, res.Spec)
	assert.Equal(t, "a", res.Spec.Root)
}

func TestRun_ContextCancelIsQuietAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := ports.GeneratorFunc(func(ctx context.Context, _ ports.GenerateRequest) (io.ReadCloser, error) {
		cancel()
		return nil, ctx.Err()
	})
	ing := New(gen)

	res, err := ing.Run(ctx, ports.GenerateRequest{})

	assert.NoError(t, err)
	assert.NotNil(t, res.Spec)
	assert.False(t, res.Valid)
}

func TestRun_LifecycleHooksFire(t *testing.T) {
	var patches, recoveries, repairs int
	hooks := domain.LifecycleHooks{
		OnPatchApplied:  func(context.Context, *domain.PatchEvent) { patches++ },
		OnLineRecovered: func(context.Context, *domain.LineEvent) { recoveries++ },
		OnRepairRound:   func(context.Context, *domain.RepairEvent) { repairs++ },
	}
	gen := &scriptedGenerator{rounds: []string{
		`{"op":"replace","path":"/root","value":"a"}}` + "\n" + `{"op":"add","bad` + "\n",
		`{"op":"add","path":"/nodes/a","value":{"type":"text"}}` + "\n",
	}}
	ing := New(gen, WithLifecycleHooks(hooks))

	_, err := ing.Run(context.Background(), ports.GenerateRequest{})

	require.NoError(t, err)
	assert.Equal(t, 2, patches)
	assert.Equal(t, 1, recoveries)
	assert.Equal(t, 1, repairs)
}

func TestRun_FailingPatchIsSkipped(t *testing.T) {
	stream := `{"op":"replace","path":"/root","value":{"not":"a string"}}` + "\n" + validStream
	gen := &scriptedGenerator{rounds: []string{stream}}
	ing := New(gen)

	res, err := ing.Run(context.Background(), ports.GenerateRequest{})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, "a", res.Spec.Root)
}

func TestIngestReader_SinglePass(t *testing.T) {
	ing := New(nil)

	res, err := ing.IngestReader(context.Background(), strings.NewReader(validStream), nil)

	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, "a", res.Spec.Root)
}
