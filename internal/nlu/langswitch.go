package nlu

import (
	"context"
	"log/slog"
	"sync"
)

// switchLanguage recycles the tokenization child process for the new locale
// and abandons the current turn. The classification the user asked for
// happens asynchronously: the tokenizer's connected handler re-enters
// Process with the same utterance exactly once. Fire-and-forget — if the
// child never comes up the user sees no reply and retries.
//
// Callers hold the session mutex.
func (s *Session) switchLanguage(ctx context.Context, log *slog.Logger, utterance, locale string) {
	log.Info("nlu: switching language", "from", s.lang, "to", locale)
	s.speak(ctx, phraseLangSwitch, "", nil)

	s.lang = locale
	if err := s.deps.Brain.SetLang(locale); err != nil {
		log.Warn("nlu: brain language switch failed", "locale", locale, "err", err)
	}
	// Invariant: the active context's language always equals the session's.
	s.cleanContext(ctx)

	if s.metrics != nil {
		s.metrics.LanguageSwitches.Add(ctx, 1)
	}

	// The reconnect handler replaces any previous one and fires at most
	// once per switch.
	var once sync.Once
	s.deps.Tokenizer.OnConnected(func() {
		once.Do(func() {
			go func() {
				if _, err := s.Process(context.Background(), utterance); err != nil {
					slog.Warn("nlu: post-switch redispatch failed", "err", err)
				}
			}()
		})
	})

	if err := s.deps.Tokenizer.Restart(ctx, locale); err != nil {
		log.Error("nlu: tokenizer restart failed", "locale", locale, "err", err)
	}
}
