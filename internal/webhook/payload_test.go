package webhook

import "testing"

func TestPayloadGet(t *testing.T) {
	p := parsePayload(t, `{
		"a": {"b": {"c": "deep"}},
		"items": [{"name": "first"}, {"name": "second"}],
		"n": 12.5,
		"decimal_string": "99,90",
		"blank": "   "
	}`)

	if got := p.str("a", "b", "c"); got != "deep" {
		t.Errorf("str = %q", got)
	}
	if got := p.str("items", "0", "name"); got != "first" {
		t.Errorf("array step = %q", got)
	}
	if got := p.str("missing", "path"); got != "" {
		t.Errorf("missing = %q", got)
	}
	if got := p.str("blank"); got != "" {
		t.Errorf("blank should trim to empty, got %q", got)
	}

	if n, ok := p.num("n"); !ok || n != 12.5 {
		t.Errorf("num = %v %v", n, ok)
	}
	if n, ok := p.num("decimal_string"); !ok || n != 99.90 {
		t.Errorf("comma decimal = %v %v", n, ok)
	}
	if _, ok := p.num("blank"); ok {
		t.Error("blank string should not parse as number")
	}

	if !p.has("a", "b") || p.has("blank") || p.has("nope") {
		t.Error("has misclassified")
	}
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{
		"2026-01-10T12:00:00Z",
		"2026-01-10T12:00:00.123Z",
		"2026-01-10T12:00:00",
		"2026-01-10 12:00:00",
		"2026-01-10",
	} {
		if parseTime(s) == nil {
			t.Errorf("parseTime(%q) = nil", s)
		}
	}
	if parseTime("10/01/2026") != nil {
		t.Error("unknown layout should not parse")
	}
}
