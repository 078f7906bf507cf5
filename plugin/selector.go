package plugin

import (
	"strings"

	"github.com/smarter-sh/smarter-sub001/core"
)

// Selector decides whether a plugin applies to a chat turn.
type Selector interface {
	Select(user *core.User, input string, messages []core.Message) bool
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(user *core.User, input string, messages []core.Message) bool

// Select implements Selector.
func (f SelectorFunc) Select(user *core.User, input string, messages []core.Message) bool {
	return f(user, input, messages)
}

// termSelector matches when any term occurs in the input, ignoring case.
type termSelector struct {
	terms []string
}

// SearchTerms returns a Selector matching any of the terms. Blank terms are
// ignored; a selector without terms never matches.
func SearchTerms(terms ...string) Selector {
	clean := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			clean = append(clean, t)
		}
	}
	return termSelector{terms: clean}
}

func (s termSelector) Select(_ *core.User, input string, _ []core.Message) bool {
	text := strings.ToLower(input)
	for _, t := range s.terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// Always selects on every turn.
var Always Selector = SelectorFunc(func(*core.User, string, []core.Message) bool { return true })
