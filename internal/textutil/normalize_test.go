package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeLabel(t *testing.T) {
	cases := map[string]string{
		"Long_Hair":          "long hair",
		"  BLUE   eyes ":     "blue eyes",
		"ＦＵＬＬＷＩＤＴＨ":          "fullwidth",
		"Straße":             "strasse",
		"category:solo_girl": "category:solo girl",
		"":                   "",
	}
	for input, want := range cases {
		if got := NormalizeLabel(input); got != want {
			t.Fatalf("NormalizeLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCompact(t *testing.T) {
	for _, input := range []string{"blow job", "blow-job", "blowjob"} {
		if got := Compact(NormalizeLabel(input)); got != "blowjob" {
			t.Fatalf("Compact(%q) = %q", input, got)
		}
	}
}

func TestWords(t *testing.T) {
	got := Words("red hair, red dress")
	want := []string{"red", "hair", "dress"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Words = %v, want %v", got, want)
	}
	if len(Words("")) != 0 {
		t.Fatal("expected no words for empty input")
	}
}

func TestRuneLen(t *testing.T) {
	if RuneLen("héllo") != 5 {
		t.Fatalf("unexpected rune length %d", RuneLen("héllo"))
	}
}
