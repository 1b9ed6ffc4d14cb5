package procscan

import (
	"fmt"
	"strings"
)

// TagFlag marks processes started by the launcher.
const TagFlag = "--instance-tag"

// Matcher decides whether a process command line belongs to the application.
type Matcher interface {
	Match(args []string) bool
	String() string
}

// TagMatcher matches processes launched with --instance-tag=<Tag>
// (or "--instance-tag <Tag>").
type TagMatcher struct {
	Tag string
}

// TagArgs returns the arguments that make a process match TagMatcher{tag}.
func TagArgs(tag string) []string {
	return []string{TagFlag + "=" + tag}
}

func (m TagMatcher) Match(args []string) bool {
	if m.Tag == "" {
		return false
	}
	// args[0] is the executable itself
	for i := 1; i < len(args); i++ {
		switch {
		case args[i] == TagFlag+"="+m.Tag:
			return true
		case args[i] == TagFlag && i+1 < len(args) && args[i+1] == m.Tag:
			return true
		}
	}
	return false
}

func (m TagMatcher) String() string { return fmt.Sprintf("tag %q", m.Tag) }

// SubstringMatcher matches when any argument contains Identifier. Matching
// is case-sensitive and done on raw, non-normalized paths.
type SubstringMatcher struct {
	Identifier string
}

func (m SubstringMatcher) Match(args []string) bool {
	if m.Identifier == "" {
		return false
	}
	for _, a := range args {
		if strings.Contains(a, m.Identifier) {
			return true
		}
	}
	return false
}

func (m SubstringMatcher) String() string { return fmt.Sprintf("substring %q", m.Identifier) }
