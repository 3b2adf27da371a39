// Package procbrain implements the brain.Executor interface by running skill
// actions as child processes.
//
// A skill action lives at {skills}/{domain}/{skill}/src/actions/{action} and
// is executed through a configured interpreter (e.g. "python3"). The action
// receives the full types.NLUResult as JSON on stdin and replies with one
// JSON object on its last stdout line:
//
//	{
//	  "answer": "...",
//	  "core": {"restart": false, "is_in_action_loop": true},
//	  "next_action": {"name": "...", "loop": false}
//	}
//
// Phrase templating (Wernicke) reads {data}/{lang}/answers.json, a map of
// answer keys to candidate phrases; one is picked at random and %var%
// placeholders are interpolated.
package procbrain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sennet-ai/sennet/pkg/provider/brain"
	"github.com/sennet-ai/sennet/pkg/surface"
	"github.com/sennet-ai/sennet/pkg/types"
)

// Compile-time check that *Brain satisfies [brain.Executor].
var _ brain.Executor = (*Brain)(nil)

// actionTimeout bounds a single skill action run.
const actionTimeout = 60 * time.Second

// Config holds the paths and interpreter for a [Brain].
type Config struct {
	// Interpreter is the command used to run skill actions, e.g. "python3".
	Interpreter string

	// SkillsRoot is the root of the on-disk skills tree.
	SkillsRoot string

	// DataRoot is the root of the per-language data tree holding
	// answers.json files.
	DataRoot string

	// Lang is the initial language.
	Lang string
}

// reply is the JSON object a skill action prints on its last stdout line.
type reply struct {
	Answer     string            `json:"answer"`
	Core       types.BrainCore   `json:"core"`
	NextAction *types.NextAction `json:"next_action,omitempty"`
}

// answersFile is the on-disk shape of {data}/{lang}/answers.json.
type answersFile struct {
	Answers map[string][]string `json:"answers"`
}

// Brain runs skill actions as child processes and speaks through a surface.
type Brain struct {
	cfg  Config
	surf surface.Surface

	mu      sync.Mutex
	lang    string
	answers map[string][]string

	// pick selects a phrase index; replaced in tests for determinism.
	pick func(n int) int
}

// New creates a Brain and loads the answers table for cfg.Lang.
func New(cfg Config, surf surface.Surface) (*Brain, error) {
	b := &Brain{
		cfg:  cfg,
		surf: surf,
		pick: rand.Intn,
	}
	if err := b.SetLang(cfg.Lang); err != nil {
		return nil, err
	}
	return b, nil
}

// SetLang switches the phrase tables to lang.
func (b *Brain) SetLang(lang string) error {
	path := filepath.Join(b.cfg.DataRoot, lang, "answers.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("procbrain: read answers %q: %w", path, err)
	}
	var af answersFile
	if err := json.Unmarshal(data, &af); err != nil {
		return fmt.Errorf("procbrain: parse answers %q: %w", path, err)
	}

	b.mu.Lock()
	b.lang = lang
	b.answers = af.Answers
	b.mu.Unlock()
	return nil
}

// Wernicke picks a random phrase for key (and optional subkey, joined with
// "."), interpolating %var% placeholders from vars. An unknown key returns
// the key itself so a missing phrase is visible rather than silent.
func (b *Brain) Wernicke(key, subkey string, vars map[string]string) string {
	if subkey != "" {
		key = key + "." + subkey
	}

	b.mu.Lock()
	phrases := b.answers[key]
	pick := b.pick
	b.mu.Unlock()

	if len(phrases) == 0 {
		slog.Warn("procbrain: no phrases for answer key", "key", key)
		return key
	}

	phrase := phrases[pick(len(phrases))]
	for name, value := range vars {
		phrase = strings.ReplaceAll(phrase, "%"+name+"%", value)
	}
	return phrase
}

// Talk delivers phrase to the user and clears the typing indicator unless
// keepTyping is set.
func (b *Brain) Talk(ctx context.Context, phrase string, keepTyping bool) error {
	if phrase == "" {
		return nil
	}
	if err := b.surf.Answer(ctx, phrase); err != nil {
		return fmt.Errorf("procbrain: talk: %w", err)
	}
	if !keepTyping {
		if err := b.surf.Typing(ctx, false); err != nil {
			return fmt.Errorf("procbrain: clear typing: %w", err)
		}
	}
	return nil
}

// Execute runs the skill action selected by result.Classification.
func (b *Brain) Execute(ctx context.Context, result *types.NLUResult) (types.BrainResult, error) {
	c := result.Classification
	actionPath := filepath.Join(b.cfg.SkillsRoot, c.Domain, c.Skill, "src", "actions", c.Action+".py")

	input, err := json.Marshal(result)
	if err != nil {
		return types.BrainResult{}, fmt.Errorf("procbrain: encode nlu result: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, b.cfg.Interpreter, actionPath)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		return types.BrainResult{}, fmt.Errorf("procbrain: run %s/%s/%s: %w (stderr: %s)",
			c.Domain, c.Skill, c.Action, runErr, strings.TrimSpace(stderr.String()))
	}

	rep, err := parseReply(stdout.Bytes())
	if err != nil {
		return types.BrainResult{}, fmt.Errorf("procbrain: %s/%s/%s: %w", c.Domain, c.Skill, c.Action, err)
	}

	if rep.Answer != "" {
		if err := b.Talk(ctx, rep.Answer, rep.Core.IsInActionLoop); err != nil {
			slog.Warn("procbrain: failed to deliver answer", "err", err)
		}
	}

	return types.BrainResult{
		ExecutionTime:      elapsed,
		Classification:     c,
		NextAction:         rep.NextAction,
		Core:               rep.Core,
		Utterance:          result.Utterance,
		ConfigDataFilePath: result.ConfigDataFilePath,
		Slots:              result.Slots,
		Answer:             rep.Answer,
	}, nil
}

// parseReply decodes the last non-empty stdout line as the action's reply.
// Earlier lines are treated as the action's own logging and ignored.
func parseReply(out []byte) (reply, error) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var rep reply
		if err := json.Unmarshal([]byte(line), &rep); err != nil {
			return reply{}, fmt.Errorf("parse action reply: %w", err)
		}
		return rep, nil
	}
	return reply{}, fmt.Errorf("action produced no output")
}
