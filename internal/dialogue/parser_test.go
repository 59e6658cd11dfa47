package dialogue

import "testing"

func TestParseBasic(t *testing.T) {
	turns := Parse("M: Good morning.\nW: Hi, how are you?")
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Speaker != "M" || turns[0].Text != "Good morning." {
		t.Errorf("turn 0 = %+v", turns[0])
	}
	if turns[1].Speaker != "W" || turns[1].Text != "Hi, how are you?" {
		t.Errorf("turn 1 = %+v", turns[1])
	}
	if turns[0].Index != 0 || turns[1].Index != 1 {
		t.Errorf("indices = %d, %d", turns[0].Index, turns[1].Index)
	}
}

func TestParseLabelForms(t *testing.T) {
	turns := Parse("A: One.\nDR: Two.\nTom: Three.")
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	want := []string{"A", "DR", "Tom"}
	for i, w := range want {
		if turns[i].Speaker != w {
			t.Errorf("turn %d speaker = %q, want %q", i, turns[i].Speaker, w)
		}
	}
}

func TestParseContinuation(t *testing.T) {
	turns := Parse("M: This is the first line\nand this continues it.\nW: Reply.")
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Text != "This is the first line and this continues it." {
		t.Errorf("joined text = %q", turns[0].Text)
	}
}

func TestParseContinuationAcrossBlankLine(t *testing.T) {
	turns := Parse("M: Start.\n\nstill part of it.\nW: End.")
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Text != "Start. still part of it." {
		t.Errorf("joined text = %q", turns[0].Text)
	}
}

func TestParseIgnoresPreamble(t *testing.T) {
	turns := Parse("Listening section one.\n\nM: Hello.")
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if turns[0].Speaker != "M" {
		t.Errorf("speaker = %q", turns[0].Speaker)
	}
}

func TestParseNoMarkers(t *testing.T) {
	turns := Parse("Just a plain sentence without any speakers.")
	if len(turns) != 0 {
		t.Fatalf("got %d turns, want 0", len(turns))
	}
}

func TestParseRejectsBadLabels(t *testing.T) {
	scripts := []string{
		"he: lowercase label",
		"MRS: three uppercase letters",
		"M:no space after colon",
		"M: ",
	}
	for _, s := range scripts {
		if turns := Parse(s); len(turns) != 0 {
			t.Errorf("Parse(%q) = %d turns, want 0", s, len(turns))
		}
	}
}

func TestParseDeterministic(t *testing.T) {
	script := "Intro text.\nM: First line\ncontinued here.\n\nW: Second.\nA: Third."
	a := Parse(script)
	b := Parse(script)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("turn %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
