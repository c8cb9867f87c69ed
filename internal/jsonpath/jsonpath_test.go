package jsonpath

import "testing"

const nested = `{
  "text": "hello",
  "data": {"items": [{"value": "a"}, {"value": "b"}]},
  "results": [{"alternatives": [{"transcript": "ok", "confidence": 0.5, "words": 3}]}],
  "dotted.key": "x"
}`

func TestExtractByPath(t *testing.T) {
	body := []byte(nested)

	if v, ok := ExtractByPath(body, "data.items[1].value"); !ok || v != "b" {
		t.Fatalf("expected b, got %v (ok=%v)", v, ok)
	}
	if v, ok := ExtractByPath(body, "results[0].alternatives[0].transcript"); !ok || v != "ok" {
		t.Fatalf("expected ok, got %v (ok=%v)", v, ok)
	}
	if v, ok := ExtractByPath(body, "results[0].alternatives[0].words"); !ok || v != "3" {
		t.Fatalf("expected 3, got %v (ok=%v)", v, ok)
	}
	if v, ok := ExtractByPath(body, "results[0].alternatives[0].confidence"); !ok || v != "0.5" {
		t.Fatalf("expected 0.5, got %v (ok=%v)", v, ok)
	}
	if _, ok := ExtractByPath(body, "data.items[99].value"); ok {
		t.Fatalf("expected not found")
	}
	if _, ok := ExtractByPath(body, "data.items"); ok {
		t.Fatalf("expected arrays to be rejected")
	}
}

func TestExtractTextEscapes(t *testing.T) {
	body := []byte(`{"task":"transcribe","text":"line one\nline \"two\"\tend \\ done\r"}`)
	v, ok := ExtractText(body, DefaultTextPath)
	if !ok {
		t.Fatalf("expected text")
	}
	want := "line one\nline \"two\"\tend \\ done\r"
	if v != want {
		t.Fatalf("expected %q, got %q", want, v)
	}
}

func TestExtractTextFieldOrderIndependent(t *testing.T) {
	v, ok := ExtractText([]byte(`{"usage":{"seconds":2},"text":"hello world"}`), "")
	if !ok || v != "hello world" {
		t.Fatalf("expected hello world, got %q (ok=%v)", v, ok)
	}
}

func TestExtractTextFallsBackToText(t *testing.T) {
	v, ok := ExtractText([]byte(nested), "missing.path")
	if !ok || v != "hello" {
		t.Fatalf("expected fallback to text, got %q (ok=%v)", v, ok)
	}
}

func TestExtractTextMissing(t *testing.T) {
	for _, body := range []string{
		`{"error":{"message":"bad key"}}`,
		`not json`,
		``,
		`{"text": {"nested": true}}`,
	} {
		if v, ok := ExtractText([]byte(body), DefaultTextPath); ok {
			t.Fatalf("expected no text for %q, got %q", body, v)
		}
	}
}

func TestToGJSONEscapesKeys(t *testing.T) {
	p, err := ToGJSON("odd*key?[1]")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p != `odd\*key\?.1` {
		t.Fatalf("unexpected path %q", p)
	}

	got, err := ToGJSON("results[0].alternatives[2].transcript")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != "results.0.alternatives.2.transcript" {
		t.Fatalf("unexpected path %q", got)
	}
}

func TestParseKeyAndIndexes(t *testing.T) {
	key, idxs, err := ParseKeyAndIndexes("foo[0][1]")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if key != "foo" || len(idxs) != 2 || idxs[0] != 0 || idxs[1] != 1 {
		t.Fatalf("unexpected parse result: key=%s idxs=%v", key, idxs)
	}
	for _, bad := range []string{"", "foo[", "foo[]", "foo[x]", "foo[0]x"} {
		if _, _, err := ParseKeyAndIndexes(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
