package procbrain

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	surfmock "github.com/sennet-ai/sennet/pkg/surface/mock"
	"github.com/sennet-ai/sennet/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newTestBrain builds a Brain over temp data/skills roots with an English
// answers table.
func newTestBrain(t *testing.T) (*Brain, *surfmock.Surface, string) {
	t.Helper()
	dataRoot := t.TempDir()
	skillsRoot := t.TempDir()
	writeFile(t, filepath.Join(dataRoot, "en", "answers.json"), `{
		"answers": {
			"random_errors": ["Something went wrong"],
			"greet": ["Hello %name%!", "Hi %name%!"],
			"random_errors.nested": ["Nested phrase"]
		}
	}`)

	surf := &surfmock.Surface{}
	b, err := New(Config{
		Interpreter: "sh",
		SkillsRoot:  skillsRoot,
		DataRoot:    dataRoot,
		Lang:        "en",
	}, surf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b.pick = func(int) int { return 0 }
	return b, surf, skillsRoot
}

func TestNewFailsWithoutAnswers(t *testing.T) {
	if _, err := New(Config{DataRoot: t.TempDir(), Lang: "en"}, &surfmock.Surface{}); err == nil {
		t.Fatal("expected error for missing answers table")
	}
}

func TestWernicke(t *testing.T) {
	b, _, _ := newTestBrain(t)

	if got := b.Wernicke("greet", "", map[string]string{"name": "Ada"}); got != "Hello Ada!" {
		t.Errorf("Wernicke = %q", got)
	}
	if got := b.Wernicke("random_errors", "nested", nil); got != "Nested phrase" {
		t.Errorf("Wernicke with subkey = %q", got)
	}
	// Unknown keys must surface as themselves, never vanish silently.
	if got := b.Wernicke("no_such_key", "", nil); got != "no_such_key" {
		t.Errorf("Wernicke unknown key = %q", got)
	}
}

func TestSetLangSwitchesAnswers(t *testing.T) {
	b, _, _ := newTestBrain(t)
	writeFile(t, filepath.Join(b.cfg.DataRoot, "fr", "answers.json"),
		`{"answers": {"greet": ["Bonjour %name% !"]}}`)

	if err := b.SetLang("fr"); err != nil {
		t.Fatalf("SetLang: %v", err)
	}
	if got := b.Wernicke("greet", "", map[string]string{"name": "Ada"}); got != "Bonjour Ada !" {
		t.Errorf("Wernicke = %q", got)
	}

	if err := b.SetLang("de"); err == nil {
		t.Error("expected error for a locale with no answers table")
	}
}

func TestTalk(t *testing.T) {
	b, surf, _ := newTestBrain(t)

	if err := b.Talk(context.Background(), "Hello", false); err != nil {
		t.Fatalf("Talk: %v", err)
	}
	if got := surf.Answers(); len(got) != 1 || got[0] != "Hello" {
		t.Errorf("answers = %v", got)
	}
	if typ := surf.TypingEvents(); len(typ) != 1 || typ[0] {
		t.Errorf("typing events = %v, want a single false", typ)
	}
}

func TestTalkKeepTyping(t *testing.T) {
	b, surf, _ := newTestBrain(t)

	if err := b.Talk(context.Background(), "Hold on", true); err != nil {
		t.Fatalf("Talk: %v", err)
	}
	if typ := surf.TypingEvents(); len(typ) != 0 {
		t.Errorf("typing events = %v, want none with keepTyping", typ)
	}
}

func TestTalkEmptyPhraseIsNoop(t *testing.T) {
	b, surf, _ := newTestBrain(t)

	if err := b.Talk(context.Background(), "", false); err != nil {
		t.Fatalf("Talk: %v", err)
	}
	if len(surf.Events) != 0 {
		t.Errorf("events = %v, want none", surf.Events)
	}
}

func TestExecuteRunsAction(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh actions are unix-only")
	}
	b, surf, skillsRoot := newTestBrain(t)

	// The action logs a line, then replies on its last stdout line.
	writeFile(t, filepath.Join(skillsRoot, "leisure", "jokes", "src", "actions", "run.py"), `
cat > /dev/null
echo "debug: picked a joke"
echo '{"answer": "Why did the gopher cross the road?", "core": {"restart": false, "is_in_action_loop": false}, "next_action": {"name": "punchline", "loop": false}}'
`)

	result := &types.NLUResult{
		Utterance: "tell me a joke",
		Classification: types.Classification{
			Domain: "leisure", Skill: "jokes", Action: "run", Confidence: 1,
		},
	}
	br, err := b.Execute(context.Background(), result)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if br.Answer != "Why did the gopher cross the road?" {
		t.Errorf("answer = %q", br.Answer)
	}
	if br.NextAction == nil || br.NextAction.Name != "punchline" {
		t.Errorf("next action = %+v", br.NextAction)
	}
	if br.Utterance != "tell me a joke" {
		t.Errorf("utterance = %q", br.Utterance)
	}
	if br.ExecutionTime <= 0 {
		t.Error("execution time not measured")
	}
	if got := surf.Answers(); len(got) != 1 || got[0] != br.Answer {
		t.Errorf("spoken answers = %v", got)
	}
}

func TestExecuteActionFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh actions are unix-only")
	}
	b, _, skillsRoot := newTestBrain(t)

	writeFile(t, filepath.Join(skillsRoot, "leisure", "jokes", "src", "actions", "run.py"), `
echo "worker crashed" >&2
exit 3
`)

	_, err := b.Execute(context.Background(), &types.NLUResult{
		Classification: types.Classification{Domain: "leisure", Skill: "jokes", Action: "run"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "worker crashed") {
		t.Errorf("error %q should carry the action's stderr", err)
	}
}

func TestExecuteMalformedReply(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh actions are unix-only")
	}
	b, _, skillsRoot := newTestBrain(t)

	writeFile(t, filepath.Join(skillsRoot, "leisure", "jokes", "src", "actions", "run.py"),
		`echo "not json"`)

	if _, err := b.Execute(context.Background(), &types.NLUResult{
		Classification: types.Classification{Domain: "leisure", Skill: "jokes", Action: "run"},
	}); err == nil {
		t.Fatal("expected error for malformed reply")
	}
}

func TestParseReplyUsesLastLine(t *testing.T) {
	rep, err := parseReply([]byte("log one\nlog two\n{\"answer\": \"hi\", \"core\": {}}\n\n"))
	if err != nil {
		t.Fatalf("parseReply: %v", err)
	}
	if rep.Answer != "hi" {
		t.Errorf("answer = %q", rep.Answer)
	}

	if _, err := parseReply([]byte("   \n\n")); err == nil {
		t.Error("expected error for empty output")
	}
}
