package transcript

import "testing"

func TestAppendOrdering(t *testing.T) {
	tr := New()

	u := tr.AppendUser("hello")
	a := tr.AppendPlaceholder()

	if u >= a {
		t.Errorf("sequence numbers not strictly increasing: user=%d agent=%d", u, a)
	}

	turns := tr.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Text != "hello" {
		t.Errorf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != RoleAgent || turns[1].Text != "" {
		t.Errorf("placeholder should be an empty agent turn: %+v", turns[1])
	}
}

func TestUniqueSequenceNumbers(t *testing.T) {
	tr := New()

	seen := make(map[uint64]bool)
	for i := 0; i < 100; i++ {
		var seq uint64
		if i%2 == 0 {
			seq = tr.AppendUser("u")
		} else {
			seq = tr.AppendPlaceholder()
		}
		if seen[seq] {
			t.Fatalf("duplicate sequence number %d", seq)
		}
		seen[seq] = true
	}
}

func TestAppendTextAccumulates(t *testing.T) {
	tr := New()
	seq := tr.AppendPlaceholder()

	for _, frag := range []string{"Hi", " ", "there"} {
		if !tr.AppendText(seq, frag) {
			t.Fatalf("AppendText(%q) rejected", frag)
		}
	}

	last, ok := tr.Last()
	if !ok {
		t.Fatal("Last() returned no turn")
	}
	if last.Text != "Hi there" {
		t.Errorf("accumulated text = %q, want %q", last.Text, "Hi there")
	}
}

func TestAppendTextRejectsUserTurn(t *testing.T) {
	tr := New()
	seq := tr.AppendUser("fixed")

	if tr.AppendText(seq, "more") {
		t.Error("AppendText should reject user turns")
	}
	last, _ := tr.Last()
	if last.Text != "fixed" {
		t.Errorf("user turn mutated: %q", last.Text)
	}
}

func TestFreezeStopsAppends(t *testing.T) {
	tr := New()
	seq := tr.AppendPlaceholder()

	tr.AppendText(seq, "partial")
	tr.Freeze(seq)

	if tr.AppendText(seq, " extra") {
		t.Error("AppendText should reject frozen turns")
	}
	last, _ := tr.Last()
	if last.Text != "partial" {
		t.Errorf("frozen turn text = %q, want %q", last.Text, "partial")
	}
}

func TestResetClearsTurnsKeepsClock(t *testing.T) {
	tr := New()
	before := tr.AppendUser("one")
	tr.AppendPlaceholder()

	tr.Reset()
	if tr.Len() != 0 {
		t.Fatalf("expected empty transcript after reset, got %d turns", tr.Len())
	}

	after := tr.AppendUser("two")
	if after <= before {
		t.Errorf("clock went backwards across reset: before=%d after=%d", before, after)
	}
}

func TestAppendTextUnknownSeq(t *testing.T) {
	tr := New()
	if tr.AppendText(42, "x") {
		t.Error("AppendText should reject unknown sequence numbers")
	}
}
