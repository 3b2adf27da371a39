package fallback

import (
	"testing"
)

var table = []Fallback{
	{Words: []string{"time"}, Domain: "utilities", Skill: "clock", Action: "tell_time"},
	{Words: []string{"weather", "tomorrow"}, Domain: "utilities", Skill: "weather", Action: "forecast"},
	{Words: []string{"weather"}, Domain: "utilities", Skill: "weather", Action: "current"},
}

func TestMatchExact(t *testing.T) {
	m := New()

	res, ok := m.Match("what TIME is it", table)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Classification.Skill != "clock" || res.Classification.Action != "tell_time" {
		t.Errorf("classification = %+v", res.Classification)
	}
	if res.Classification.Confidence != 1 {
		t.Errorf("confidence = %v, want 1", res.Classification.Confidence)
	}
	if len(res.Entities) != 0 || len(res.CurrentEntities) != 0 {
		t.Errorf("fallback result must carry no entities, got %v / %v", res.Entities, res.CurrentEntities)
	}
	if res.Utterance != "what TIME is it" {
		t.Errorf("utterance = %q", res.Utterance)
	}
}

func TestMatchRequiresAllWords(t *testing.T) {
	m := New()

	res, ok := m.Match("weather tomorrow please", table)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Classification.Action != "forecast" {
		t.Errorf("action = %q, want forecast (first rule with all words present)", res.Classification.Action)
	}

	res, ok = m.Match("how is the weather", table)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Classification.Action != "current" {
		t.Errorf("action = %q, want current", res.Classification.Action)
	}
}

func TestMatchDeclarationOrderBreaksTies(t *testing.T) {
	m := New()
	tied := []Fallback{
		{Words: []string{"play"}, Domain: "music", Skill: "player", Action: "first"},
		{Words: []string{"play"}, Domain: "music", Skill: "player", Action: "second"},
	}

	res, ok := m.Match("play something", tied)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Classification.Action != "first" {
		t.Errorf("action = %q, want first", res.Classification.Action)
	}
}

func TestMatchMiss(t *testing.T) {
	m := New()

	if res, ok := m.Match("tell me a joke", table); ok {
		t.Errorf("unexpected match: %+v", res)
	}
}

func TestMatchEmptyWordListNeverFires(t *testing.T) {
	m := New()

	if _, ok := m.Match("anything at all", []Fallback{{Domain: "d", Skill: "s", Action: "a"}}); ok {
		t.Error("rule with no words must not fire")
	}
}

func TestMatchIsPure(t *testing.T) {
	m := New()

	for i := 0; i < 10; i++ {
		res, ok := m.Match("weather tomorrow", table)
		if !ok || res.Classification.Action != "forecast" {
			t.Fatalf("result drifted: ok=%v res=%+v", ok, res)
		}
	}
}

func TestPhoneticMatch(t *testing.T) {
	m := New(WithPhoneticThreshold(0.85))

	// "wether" is a transcription slip of "weather".
	res, ok := m.Match("hows the wether", table)
	if !ok {
		t.Fatal("expected a phonetic match")
	}
	if res.Classification.Action != "current" {
		t.Errorf("action = %q, want current", res.Classification.Action)
	}
}

func TestPhoneticDisabledByDefault(t *testing.T) {
	m := New()

	if _, ok := m.Match("hows the wether", table); ok {
		t.Error("exact matcher must not fire on misspelled words")
	}
}

func TestPhoneticRejectsUnrelatedWords(t *testing.T) {
	m := New(WithPhoneticThreshold(0.85))

	if _, ok := m.Match("purple elephant", table); ok {
		t.Error("phonetic mode must not match unrelated words")
	}
}
