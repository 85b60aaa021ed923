package loader

import "testing"

func TestDeepMerge(t *testing.T) {
	dst := map[string]any{
		"scrollback": map[string]any{"maxLines": int64(10000)},
		"logging":    map[string]any{"level": "info", "format": "json"},
	}
	src := map[string]any{
		"logging": map[string]any{"level": "debug"},
		"script":  map[string]any{"timeout": "5s"},
	}

	got := DeepMerge(dst, src)

	if v, _ := Lookup(got, "logging.level"); v != "debug" {
		t.Errorf("logging.level = %v, want debug", v)
	}
	if v, _ := Lookup(got, "logging.format"); v != "json" {
		t.Errorf("logging.format = %v, want json", v)
	}
	if v, _ := Lookup(got, "scrollback.maxLines"); v != int64(10000) {
		t.Errorf("scrollback.maxLines = %v", v)
	}
	if v, _ := Lookup(got, "script.timeout"); v != "5s" {
		t.Errorf("script.timeout = %v", v)
	}
}

func TestDeepMergeNil(t *testing.T) {
	got := DeepMerge(nil, map[string]any{"a": int64(1)})
	if got["a"] != int64(1) {
		t.Errorf("a = %v", got["a"])
	}
	got = DeepMerge(map[string]any{"a": int64(1)}, nil)
	if len(got) != 1 {
		t.Errorf("merge with nil src changed dst: %v", got)
	}
}

func TestClone(t *testing.T) {
	src := map[string]any{
		"marks": map[string]any{"maxCapturedOutput": int64(3)},
		"list":  []any{map[string]any{"x": int64(1)}},
	}
	dst := Clone(src)

	dst["marks"].(map[string]any)["maxCapturedOutput"] = int64(9)
	dst["list"].([]any)[0].(map[string]any)["x"] = int64(2)

	if v, _ := Lookup(src, "marks.maxCapturedOutput"); v != int64(3) {
		t.Errorf("clone shares nested map: %v", v)
	}
	if src["list"].([]any)[0].(map[string]any)["x"] != int64(1) {
		t.Error("clone shares slice elements")
	}
	if Clone(nil) != nil {
		t.Error("Clone(nil) should be nil")
	}
}

func TestLookup(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": "c"}, "s": "x"}
	if v, ok := Lookup(data, "a.b"); !ok || v != "c" {
		t.Errorf("Lookup(a.b) = %v, %v", v, ok)
	}
	if _, ok := Lookup(data, "a.z"); ok {
		t.Error("Lookup(a.z) should miss")
	}
	if _, ok := Lookup(data, "s.b"); ok {
		t.Error("Lookup through a scalar should miss")
	}
}
