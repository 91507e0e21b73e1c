package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	c := Cursor{
		Src: "6f1c2d9e-0000-4000-8000-000000000001",
		Okr: "6f1c2d9e-0000-4000-8000-000000000002",
		K:   "alert_status",
		Sh:  "0123456789abcdef",
		Off: 50,
		Ps:  50,
	}
	tok, err := EncodeCursor(c)
	if err != nil {
		t.Fatalf("EncodeCursor error: %v", err)
	}
	// token should be url-safe base64 (no '+', '/', '=')
	if strings.ContainsAny(tok, "+/=") {
		t.Fatalf("token contains non-url-safe chars: %q", tok)
	}
	out, err := DecodeCursor(tok)
	if err != nil {
		t.Fatalf("DecodeCursor error: %v", err)
	}
	if out.Src != c.Src || out.Okr != c.Okr || out.K != c.K || out.Sh != c.Sh || out.Off != c.Off || out.Ps != c.Ps {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", out, c)
	}
	if out.V != 1 || out.Iat == 0 {
		t.Fatalf("expected defaults for v and iat, got %+v", out)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	cases := []string{
		"",    // empty
		"!!!", // not base64
		base64.RawURLEncoding.EncodeToString([]byte("not-json")),
		// missing required fields
		mustB64(`{"v":1}`),
		mustB64(`{"v":1,"src":"","k":"index","sh":"h","off":0,"ps":10}`),
		mustB64(`{"v":1,"src":"x","k":"","sh":"h","off":0,"ps":10}`),
		mustB64(`{"v":1,"src":"x","k":"index","sh":"","off":0,"ps":10}`),
		mustB64(`{"v":1,"src":"x","k":"index","sh":"h","off":-1,"ps":10}`),
		mustB64(`{"v":1,"src":"x","k":"index","sh":"h","off":0,"ps":0}`),
	}
	for i, tok := range cases {
		if _, err := DecodeCursor(tok); err == nil {
			t.Fatalf("case %d: expected error for token %q", i, tok)
		}
	}
}

func TestCursorBind(t *testing.T) {
	c := &Cursor{Src: "a", Okr: "b", K: "score", Sh: "h1"}
	if err := c.Bind("a", "b", "score", "h1"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := c.Bind("a", "b", "score", "h2"); !errors.Is(err, ErrStale) {
		t.Fatalf("expected stale for changed selection, got %v", err)
	}
	if err := c.Bind("a", "", "score", "h1"); !errors.Is(err, ErrStale) {
		t.Fatalf("expected stale for changed okr, got %v", err)
	}
}

func TestNextOffset(t *testing.T) {
	if got := NextOffset(-5, 10); got != 10 {
		t.Fatalf("NextOffset(-5,10) = %d", got)
	}
	if got := NextOffset(20, 0); got != 20 {
		t.Fatalf("NextOffset(20,0) = %d", got)
	}
}

func TestNext(t *testing.T) {
	c := Cursor{Src: "a", K: "index", Sh: "h", Off: 0, Ps: 10}
	tok, err := Next(c, 10, 25)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	out, err := DecodeCursor(tok)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if out.Off != 10 || out.Ps != 10 || out.K != "index" {
		t.Fatalf("unexpected next cursor %+v", out)
	}

	c.Off = 20
	if tok, err := Next(c, 5, 25); err != nil || tok != "" {
		t.Fatalf("expected last page, got %q, %v", tok, err)
	}
}

func FuzzDecodeCursor(f *testing.F) {
	seeds := []string{
		"", "abc", mustB64(`{"v":1}`), mustB64(`{"src":"x"}`),
		mustB64(`{"v":1,"src":"x","k":"index","sh":"h","off":0,"ps":1}`),
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, token string) {
		_, _ = DecodeCursor(token)
	})
}

func mustB64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
