package otel

import "testing"

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer abc ,empty=, =skip,novalue , x-tenant=shop")
	want := map[string]string{"authorization": "Bearer abc", "empty": "", "x-tenant": "shop"}
	if len(got) != len(want) {
		t.Fatalf("unexpected headers: %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("header %q: want %q got %q", k, v, got[k])
		}
	}
}
