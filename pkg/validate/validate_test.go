package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapestrylab/weft/pkg/domain"
	"github.com/tapestrylab/weft/pkg/validate"
)

func oneNodeSpec() *domain.Spec {
	s := domain.NewSpec()
	s.Root = "a"
	s.Nodes["a"] = &domain.Node{Type: "Text"}
	return s
}

func TestValidate_CleanDocument(t *testing.T) {
	res := validate.Validate(oneNodeSpec())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Issues)
}

func TestValidate_MissingChildIsTerminal(t *testing.T) {
	s := oneNodeSpec()
	s.Nodes["a"].Children = []string{"missing"}

	res := validate.Validate(s)
	require.False(t, res.Valid)

	errs := res.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "/nodes/missing", errs[0].Path)

	// Not auto-fixable: AutoFix leaves the dangling reference alone.
	fixed, fixes := validate.AutoFix(s)
	assert.Empty(t, fixes)
	assert.False(t, validate.Validate(fixed).Valid)
}

func TestValidate_MissingRoot(t *testing.T) {
	s := oneNodeSpec()
	s.Root = "ghost"

	res := validate.Validate(s)
	assert.False(t, res.Valid)
	assert.Equal(t, "/nodes/ghost", res.Errors()[0].Path)
}

func TestValidate_EmptyDocument(t *testing.T) {
	res := validate.Validate(domain.NewSpec())
	assert.False(t, res.Valid)
}

func TestAutoFix_HoistsVisible(t *testing.T) {
	s := oneNodeSpec()
	cond := map[string]any{"$state": "/show"}
	s.Nodes["a"].Props = map[string]any{"label": "hi", "visible": cond}

	fixed, fixes := validate.AutoFix(s)

	require.Len(t, fixes, 1)
	assert.Equal(t, cond, fixed.Node("a").Visible)
	_, still := fixed.Node("a").Props["visible"]
	assert.False(t, still)
	// Untouched props survive the hoist.
	assert.Equal(t, "hi", fixed.Node("a").Props["label"])
	// Original document not mutated.
	assert.NotNil(t, s.Node("a").Props["visible"])
}

func TestAutoFix_HoistsOnAndWatch(t *testing.T) {
	s := oneNodeSpec()
	s.Nodes["a"].Props = map[string]any{
		"on":    map[string]any{"press": map[string]any{"action": "submit"}},
		"watch": map[string]any{"/cart": []any{map[string]any{"action": "recalc"}}},
	}

	fixed, fixes := validate.AutoFix(s)

	assert.Len(t, fixes, 2)
	require.Len(t, fixed.Node("a").On["press"], 1)
	assert.Equal(t, "submit", fixed.Node("a").On["press"][0].Action)
	require.Len(t, fixed.Node("a").Watch["/cart"], 1)
	assert.Equal(t, "recalc", fixed.Node("a").Watch["/cart"][0].Action)
}

func TestAutoFix_Idempotent(t *testing.T) {
	s := oneNodeSpec()
	s.Nodes["a"].Props = map[string]any{"visible": true, "on": map[string]any{"press": map[string]any{"action": "x"}}}

	once, fixes1 := validate.AutoFix(s)
	require.NotEmpty(t, fixes1)

	twice, fixes2 := validate.AutoFix(once)
	assert.Empty(t, fixes2)
	assert.Same(t, once, twice)
}

func TestValidate_WarningsDoNotInvalidate(t *testing.T) {
	s := oneNodeSpec()
	s.Nodes["a"].Type = ""

	res := validate.Validate(s)
	assert.True(t, res.Valid)
	assert.NotEmpty(t, res.Issues)
}
