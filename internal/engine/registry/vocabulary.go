// Package registry holds the vocabulary, event, and hook-definition
// registries behavior modules populate during the load phase, plus the
// cross-reference validator that runs once at finalize. Conflict rules are
// tier-symmetric: load order across modules never changes the outcome.
package registry

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// VerbBinding is one (tier, event) mapping for a word, tagged with the
// module that registered it.
type VerbBinding struct {
	Tier   int
	Event  string
	Module string
}

// Vocabulary maps words to tier-ordered event bindings.
//
// Invariant: at most one event per (word, tier); per-word lists stay sorted
// ascending by tier.
type Vocabulary struct {
	verbs  map[string][]VerbBinding
	logger *zap.Logger
}

// NewVocabulary returns an empty Vocabulary.
//
// Precondition: logger must be non-nil (use zap.NewNop in tests).
func NewVocabulary(logger *zap.Logger) *Vocabulary {
	return &Vocabulary{
		verbs:  make(map[string][]VerbBinding),
		logger: logger,
	}
}

// RegisterVerbMapping maps word to event at the given tier. Re-registering
// the identical mapping is a no-op; a different event at the same tier is a
// conflict naming both events and both owning modules.
//
// Precondition: word, event, and moduleID must be non-empty; tier >= 1.
func (v *Vocabulary) RegisterVerbMapping(word, event, moduleID string, tier int) error {
	for _, b := range v.verbs[word] {
		if b.Tier != tier {
			continue
		}
		if b.Event == event {
			v.logger.Debug("vocabulary: duplicate verb mapping ignored",
				zap.String("word", word),
				zap.String("event", event),
				zap.Int("tier", tier),
			)
			return nil
		}
		return authoringErrorf(moduleID, fmt.Sprintf("verb %q", word),
			"tier %d already maps to event %q (module %q); cannot also map to %q (module %q)",
			tier, b.Event, b.Module, event, moduleID)
	}

	v.verbs[word] = append(v.verbs[word], VerbBinding{Tier: tier, Event: event, Module: moduleID})
	sort.SliceStable(v.verbs[word], func(i, j int) bool {
		return v.verbs[word][i].Tier < v.verbs[word][j].Tier
	})
	return nil
}

// EventsForVerb returns the bindings for word, ascending by tier. The
// returned slice is a copy; an unknown word yields nil.
func (v *Vocabulary) EventsForVerb(word string) []VerbBinding {
	bindings, ok := v.verbs[word]
	if !ok {
		return nil
	}
	out := make([]VerbBinding, len(bindings))
	copy(out, bindings)
	return out
}

// EventForVerb returns the lowest-tier (highest-precedence) event for word,
// or ("", false) if the word was never registered.
func (v *Vocabulary) EventForVerb(word string) (string, bool) {
	bindings := v.verbs[word]
	if len(bindings) == 0 {
		return "", false
	}
	return bindings[0].Event, true
}

// Words returns every registered word in sorted order.
func (v *Vocabulary) Words() []string {
	out := make([]string, 0, len(v.verbs))
	for w := range v.verbs {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
