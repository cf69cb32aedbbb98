// Package ingest consumes a line-delimited edit stream from a generation
// backend and turns it into a document. It classifies each line as
// commentary, a patch, or malformed; recovers bounded trailing-bracket
// corruption; and drives a combined mid-stream/post-stream repair retry
// loop against a shared budget.
//
// Per round the ingester moves through
//
//	Idle -> Streaming -> CompletedClean | AbortedMalformed
//
// and either finishes (clean and valid), starts a repair round, or stops
// with the best-known document once the budget is exhausted.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tapestrylab/weft/internal/logging"
	"github.com/tapestrylab/weft/pkg/domain"
	"github.com/tapestrylab/weft/pkg/observability"
	"github.com/tapestrylab/weft/pkg/patch"
	"github.com/tapestrylab/weft/pkg/ports"
	"github.com/tapestrylab/weft/pkg/validate"
)

// maxBracketStrips bounds trailing-character recovery: a line that would
// need a fourth strip stays malformed.
const maxBracketStrips = 3

// DefaultMaxRetries is the shared repair budget covering both mid-stream
// malformed aborts and post-stream validation failures.
const DefaultMaxRetries = 2

// Ingester drives generation rounds for one request.
type Ingester struct {
	gen        ports.Generator
	maxRetries int
	validating bool
	logger     *slog.Logger
	hooks      domain.LifecycleHooks
	metrics    *observability.Metrics
}

// Option defines a functional option for configuring the Ingester.
type Option func(*Ingester)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingester) { i.logger = logger }
}

// WithMaxRetries sets the shared repair budget.
func WithMaxRetries(n int) Option {
	return func(i *Ingester) { i.maxRetries = n }
}

// WithoutValidation disables post-stream validation and, with it,
// malformed-line aborts: unparseable lines are recorded and skipped.
func WithoutValidation() Option {
	return func(i *Ingester) { i.validating = false }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(i *Ingester) { i.hooks = hooks }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(i *Ingester) { i.metrics = m }
}

// New creates an Ingester backed by a generation transport.
func New(gen ports.Generator, opts ...Option) *Ingester {
	i := &Ingester{
		gen:        gen,
		maxRetries: DefaultMaxRetries,
		validating: true,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Result is the outcome of a Run: the best-known document plus everything
// a caller needs to distinguish clean, repaired and exhausted outcomes.
type Result struct {
	Spec      *domain.Spec
	Valid     bool
	Issues    []domain.ValidationIssue
	Fixes     []string
	Rounds    int
	Recovered int
	Applied   int
	Malformed []string
	Usage     map[string]any
}

// Run executes generation rounds until a clean-and-valid document is
// reached or the retry budget is exhausted. The returned Result always
// carries the best-known document; a non-nil error marks transport
// failure or budget exhaustion, never a merely imperfect document.
// Cancelling ctx aborts quietly with whatever was built so far.
func (i *Ingester) Run(ctx context.Context, req ports.GenerateRequest) (*Result, error) {
	spec := req.CurrentSpec
	if spec == nil {
		spec = domain.NewSpec()
	}
	res := &Result{}
	budget := i.maxRetries
	prompt := req.Prompt

	for {
		res.Rounds++
		body, err := i.gen.Generate(ctx, ports.GenerateRequest{
			Prompt:      prompt,
			Context:     req.Context,
			CurrentSpec: spec,
		})
		if err != nil {
			res.Spec = spec
			if ctx.Err() != nil {
				// User-initiated abort: intentional, not a failure.
				return res, nil
			}
			return res, fmt.Errorf("generation transport: %w", err)
		}

		var badLine string
		spec, badLine, err = i.consume(ctx, body, spec, res)
		body.Close()
		if err != nil {
			res.Spec = spec
			if ctx.Err() != nil {
				return res, nil
			}
			return res, fmt.Errorf("reading stream: %w", err)
		}

		if badLine != "" {
			// AbortedMalformed: the partial document plus the offending
			// line seed a repair round, if the budget allows.
			if budget > 0 {
				budget--
				i.emitRepair(ctx, res.Rounds, nil, badLine)
				prompt = repairPromptMalformed(spec, badLine)
				continue
			}
			res.Spec = spec
			return res, fmt.Errorf("%w: unparseable line %q", domain.ErrRetriesExhausted, truncate(badLine, 80))
		}

		if !i.validating {
			res.Spec = spec
			res.Valid = true
			return res, nil
		}

		// Auto-fix applies unconditionally at zero retry cost.
		fixed, fixes := validate.AutoFix(spec)
		spec = fixed
		res.Fixes = append(res.Fixes, fixes...)

		v := validate.Validate(spec)
		res.Issues = v.Issues
		if v.Valid {
			res.Spec = spec
			res.Valid = true
			return res, nil
		}
		if budget > 0 {
			budget--
			i.emitRepair(ctx, res.Rounds, v.Errors(), "")
			prompt = repairPromptValidation(spec, v.Errors())
			continue
		}
		res.Spec = spec
		return res, domain.ErrRetriesExhausted
	}
}

// IngestReader applies a single already-open edit stream without retries,
// then auto-fixes and validates. Used for offline replay of recorded
// streams.
func (i *Ingester) IngestReader(ctx context.Context, r io.Reader, seed *domain.Spec) (*Result, error) {
	spec := seed
	if spec == nil {
		spec = domain.NewSpec()
	}
	res := &Result{Rounds: 1}

	spec, badLine, err := i.consume(ctx, r, spec, res)
	if err != nil {
		res.Spec = spec
		return res, err
	}
	if badLine != "" {
		res.Malformed = append(res.Malformed, badLine)
	}

	fixed, fixes := validate.AutoFix(spec)
	res.Fixes = fixes
	v := validate.Validate(fixed)
	res.Spec = fixed
	res.Issues = v.Issues
	res.Valid = v.Valid && badLine == ""
	return res, nil
}

// consume drains one stream, applying patches in arrival order. It
// returns the offending line when a malformed line aborts the round.
func (i *Ingester) consume(ctx context.Context, r io.Reader, spec *domain.Spec, res *Result) (*domain.Spec, string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return spec, "", ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		if line[0] != '{' && line[0] != '[' {
			// Model narration between edits; dropped, never an error.
			i.countLine(observability.LineClassCommentary)
			i.logger.Debug("dropping commentary line", "line", truncate(line, 60))
			continue
		}

		clean, stripped, perr := recoverLine(line)
		if perr != nil {
			i.countLine(observability.LineClassMalformed)
			if i.validating {
				i.logger.Warn("malformed line aborts stream for repair", "line", truncate(line, 80))
				return spec, line, nil
			}
			i.logger.Warn("skipping malformed line", "line", truncate(line, 80))
			res.Malformed = append(res.Malformed, line)
			continue
		}
		if stripped > 0 {
			res.Recovered++
			if i.metrics != nil {
				i.metrics.RecoveriesTotal.Inc()
			}
			i.logger.Debug("recovered malformed line", "stripped", stripped)
			if i.hooks.OnLineRecovered != nil {
				i.hooks.OnLineRecovered(ctx, &domain.LineEvent{
					EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventLineRecovered},
					Line:      line,
					Stripped:  stripped,
				})
			}
		}

		if meta, ok := metaLine(clean); ok {
			i.countLine(observability.LineClassMeta)
			res.Usage = meta
			continue
		}

		var p domain.Patch
		if err := json.Unmarshal([]byte(clean), &p); err != nil || p.Op == "" {
			i.countLine(observability.LineClassMalformed)
			i.logger.Warn("line is valid JSON but not a patch", "line", truncate(clean, 80))
			continue
		}

		next, err := patch.Apply(spec, p)
		if err != nil {
			i.logger.Warn("patch failed to apply", "op", p.Op, "path", p.Path, "err", err)
			continue
		}
		spec = next
		res.Applied++
		i.countLine(observability.LineClassPatch)
		if i.metrics != nil {
			i.metrics.PatchesApplied.Inc()
		}
		if i.hooks.OnPatchApplied != nil {
			i.hooks.OnPatchApplied(ctx, &domain.PatchEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventPatchApplied},
				Patch:     p,
			})
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return spec, "", err
	}
	return spec, "", nil
}

// recoverLine parses a line, retrying after stripping up to three
// trailing closing brackets the model tends to over-emit.
func recoverLine(line string) (string, int, error) {
	if json.Valid([]byte(line)) {
		return line, 0, nil
	}
	raw := line
	for strip := 1; strip <= maxBracketStrips; strip++ {
		if raw == "" {
			break
		}
		last := raw[len(raw)-1]
		if last != '}' && last != ']' {
			break
		}
		raw = raw[:len(raw)-1]
		if json.Valid([]byte(raw)) {
			return raw, strip, nil
		}
	}
	return "", 0, fmt.Errorf("unparseable json line")
}

// metaLine detects the reserved {"__meta": ...} telemetry form.
func metaLine(clean string) (map[string]any, bool) {
	var probe map[string]any
	if err := json.Unmarshal([]byte(clean), &probe); err != nil {
		return nil, false
	}
	if _, ok := probe["__meta"]; !ok {
		return nil, false
	}
	return probe, true
}

func (i *Ingester) countLine(class string) {
	if i.metrics != nil {
		i.metrics.LinesTotal.WithLabelValues(class).Inc()
	}
}

func (i *Ingester) emitRepair(ctx context.Context, round int, issues []domain.ValidationIssue, malformed string) {
	if i.metrics != nil {
		i.metrics.RepairRoundsTotal.Inc()
	}
	if i.hooks.OnRepairRound != nil {
		i.hooks.OnRepairRound(ctx, &domain.RepairEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventRepairRound},
			Round:     round,
			Issues:    issues,
			Malformed: malformed,
		})
	}
	i.logger.Info("starting repair round", "round", round, "issues", len(issues), "malformed", malformed != "")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
