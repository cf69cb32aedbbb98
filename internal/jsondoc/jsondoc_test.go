package jsondoc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tapestrylab/weft/internal/jsondoc"
)

func TestSetCreatesIntermediateContainers(t *testing.T) {
	doc := jsondoc.Set(map[string]any{}, "/customers/0/name", "Ada")

	v, ok := jsondoc.Get(doc, "/customers/0/name")
	assert.True(t, ok)
	assert.Equal(t, "Ada", v)

	// Numeric segment produced an array, not an object keyed "0".
	arr, ok := jsondoc.Get(doc, "/customers")
	assert.True(t, ok)
	assert.IsType(t, []any{}, arr)
}

func TestSetOverwritesScalarPrefix(t *testing.T) {
	doc := jsondoc.Set(map[string]any{"a": 42}, "/a/b", "deep")

	v, ok := jsondoc.Get(doc, "/a/b")
	assert.True(t, ok)
	assert.Equal(t, "deep", v)
}

func TestSetPadsArray(t *testing.T) {
	doc := jsondoc.Set(map[string]any{}, "/list/2", "x")

	arr, _ := jsondoc.Get(doc, "/list")
	assert.Len(t, arr, 3)
	assert.Nil(t, arr.([]any)[0])
	assert.Equal(t, "x", arr.([]any)[2])
}

func TestDeleteSplicesArrays(t *testing.T) {
	doc := map[string]any{"list": []any{"a", "b", "c"}}
	doc2 := jsondoc.Delete(doc, "/list/1").(map[string]any)

	assert.Equal(t, []any{"a", "c"}, doc2["list"])
}

func TestDeleteMissingIsNoOp(t *testing.T) {
	doc := map[string]any{"a": 1}
	out := jsondoc.Delete(doc, "/b/c")
	assert.Equal(t, map[string]any{"a": 1}, out)
}

func TestGetMissing(t *testing.T) {
	_, ok := jsondoc.Get(map[string]any{"a": 1}, "/a/b")
	assert.False(t, ok)
}

func TestDeepCopyIsolates(t *testing.T) {
	src := map[string]any{"nested": map[string]any{"k": "v"}, "list": []any{1, 2}}
	cp := jsondoc.DeepCopy(src).(map[string]any)

	cp["nested"].(map[string]any)["k"] = "changed"
	cp["list"].([]any)[0] = 99

	assert.Equal(t, "v", src["nested"].(map[string]any)["k"])
	assert.Equal(t, 1, src["list"].([]any)[0])
}
