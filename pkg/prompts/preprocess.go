package prompts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// scriptTimeout bounds one script run over one message.
const scriptTimeout = 250 * time.Millisecond

// RegexScript is one find and replace step run over message text before the
// model reads it.
type RegexScript struct {
	Name string `yaml:"name" json:"name"`
	// Find is "/pattern/flags" or a bare pattern. Bare patterns and the g
	// flag replace every match, otherwise only the first one. Flags i, m
	// and s are supported.
	Find    string `yaml:"find" json:"find"`
	Replace string `yaml:"replace" json:"replace"`
	// TrimStrings are removed as literal text after the replacement.
	TrimStrings []string `yaml:"trim_strings" json:"trim_strings"`
}

type compiledScript struct {
	re      *regexp2.Regexp
	count   int
	replace string
	trims   []string
}

// Preprocessor runs regex scripts in order. A nil Preprocessor leaves text
// unchanged.
type Preprocessor struct {
	scripts []compiledScript
}

// NewPreprocessor compiles the scripts.
func NewPreprocessor(scripts []RegexScript) (*Preprocessor, error) {
	p := &Preprocessor{scripts: make([]compiledScript, 0, len(scripts))}
	for i, s := range scripts {
		c, err := s.compile()
		if err != nil {
			name := s.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("regex script %s: %w", name, err)
		}
		p.scripts = append(p.scripts, c)
	}
	return p, nil
}

// Apply runs every script over text. A script that fails at match time is
// skipped.
func (p *Preprocessor) Apply(text string) string {
	if p == nil {
		return text
	}
	for _, s := range p.scripts {
		if s.re != nil {
			out, err := s.re.Replace(text, s.replace, -1, s.count)
			if err == nil {
				text = out
			}
		}
		for _, t := range s.trims {
			text = strings.ReplaceAll(text, t, "")
		}
	}
	return text
}

func (s RegexScript) compile() (compiledScript, error) {
	c := compiledScript{replace: s.Replace}
	for _, t := range s.TrimStrings {
		if t != "" {
			c.trims = append(c.trims, t)
		}
	}
	if s.Find == "" {
		if len(c.trims) == 0 {
			return c, errors.New("find or trim_strings is required")
		}
		return c, nil
	}

	pattern, opts, global, err := parseFind(s.Find)
	if err != nil {
		return c, err
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return c, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	re.MatchTimeout = scriptTimeout
	c.re = re
	c.count = 1
	if global {
		c.count = -1
	}
	return c, nil
}

// parseFind splits "/pattern/flags". Anything else is a bare pattern that
// replaces globally.
func parseFind(find string) (string, regexp2.RegexOptions, bool, error) {
	last := strings.LastIndex(find, "/")
	if !strings.HasPrefix(find, "/") || last <= 0 {
		return find, regexp2.None, true, nil
	}

	opts := regexp2.None
	global := false
	for _, f := range find[last+1:] {
		switch f {
		case 'g':
			global = true
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'u':
		default:
			return "", 0, false, fmt.Errorf("unknown regex flag %q", f)
		}
	}
	return find[1:last], opts, global, nil
}
