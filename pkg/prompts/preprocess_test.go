package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessorApply(t *testing.T) {
	tests := []struct {
		name    string
		scripts []RegexScript
		in      string
		want    string
	}{
		{
			name:    "bare pattern replaces every match",
			scripts: []RegexScript{{Find: `\*[^*]+\*`, Replace: ""}},
			in:      "*waves* Hi *smiles*",
			want:    " Hi ",
		},
		{
			name:    "without g only the first match",
			scripts: []RegexScript{{Find: "/cat/", Replace: "dog"}},
			in:      "cat and cat",
			want:    "dog and cat",
		},
		{
			name:    "flags",
			scripts: []RegexScript{{Find: "/^ooc:.*$/gim", Replace: ""}},
			in:      "Hello\nOOC: brb\nBye",
			want:    "Hello\n\nBye",
		},
		{
			name:    "capture groups",
			scripts: []RegexScript{{Find: `/(\w+)@(\w+)/g`, Replace: "$2 at $1"}},
			in:      "ava@home",
			want:    "home at ava",
		},
		{
			name:    "lookbehind",
			scripts: []RegexScript{{Find: `/(?<=\$)\d+/g`, Replace: "N"}},
			in:      "costs $20 or 30",
			want:    "costs $N or 30",
		},
		{
			name: "scripts run in order then trim literally",
			scripts: []RegexScript{
				{Find: "/a/g", Replace: "b"},
				{Find: "/b+/g", Replace: "[x]"},
				{TrimStrings: []string{"[x]"}},
			},
			in:   "aab.",
			want: ".",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPreprocessor(tt.scripts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Apply(tt.in))
		})
	}
}

func TestPreprocessorNil(t *testing.T) {
	var p *Preprocessor
	assert.Equal(t, "text", p.Apply("text"))
}

func TestNewPreprocessorErrors(t *testing.T) {
	tests := []struct {
		name    string
		script  RegexScript
		wantErr string
	}{
		{name: "bad pattern", script: RegexScript{Name: "broken", Find: "/(/g"}, wantErr: "regex script broken"},
		{name: "unknown flag", script: RegexScript{Find: "/a/gx"}, wantErr: "unknown regex flag"},
		{name: "empty script", script: RegexScript{Name: "noop"}, wantErr: "find or trim_strings is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPreprocessor([]RegexScript{tt.script})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSettingsPreprocessor(t *testing.T) {
	s := DefaultSettings()
	s.RegexScripts = []RegexScript{{Find: "a", Replace: "b"}}

	p, err := s.Preprocessor()
	require.NoError(t, err)
	assert.Nil(t, p, "scripts are ignored while preprocessing is off")

	s.PreprocessingEnabled = true
	p, err = s.Preprocessor()
	require.NoError(t, err)
	assert.Equal(t, "bbc", p.Apply("abc"))
}
