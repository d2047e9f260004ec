package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

func instance(t *testing.T, data string) *tracker.Object {
	t.Helper()
	obj, err := tracker.Decode(data, tracker.FormatJSON)
	require.NoError(t, err)
	return obj
}

const sceneJSON = `{
	"Time": "10:05",
	"Location": "",
	"Stats": {"Height": "180cm"},
	"Present": ["Ann", "Bob"],
	"Topics": [{"Name": "work", "Tone": "tense"}, {"Name": "rain"}],
	"Characters": {
		"Ann": {"Age": "34", "Outfit": ["coat", "boots"]},
		"Bob": {"Age": ""}
	}
}`

func TestRender(t *testing.T) {
	inst := instance(t, sceneJSON)

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "placeholder", tmpl: "Time: {{Time}}", want: "Time: 10:05"},
		{name: "padded placeholder", tmpl: "{{ Time }}", want: "10:05"},
		{name: "missing field", tmpl: "Weather: {{Weather}}.", want: "Weather: ."},
		{name: "nested path", tmpl: "{{Stats.Height}}", want: "180cm"},
		{name: "list placeholder", tmpl: "{{Present}}", want: "Ann, Bob"},
		{name: "index into list", tmpl: "{{Present.1}} {{Topics.0.Name}}", want: "Bob work"},
		{name: "object placeholder", tmpl: "[{{Characters}}]", want: "[]"},
		{name: "if with value", tmpl: "{{#if Time}}at {{Time}}{{/if}}", want: "at 10:05"},
		{name: "if on empty value", tmpl: "{{#if Location}}in {{Location}}{{/if}}", want: ""},
		{name: "if on missing field", tmpl: "a{{#if Nope}}b{{/if}}c", want: "ac"},
		{name: "join list", tmpl: `{{#join "; " Present}}`, want: "Ann; Bob"},
		{name: "join keyed items", tmpl: `{{#join " & " Characters}}`, want: "Ann & Bob"},
		{name: "join object list", tmpl: `{{#join " | " Topics}}`, want: "work, tense | rain"},
		{name: "join missing", tmpl: `<{{#join ", " Nope}}>`, want: "<>"},
		{
			name: "foreach keyed items",
			tmpl: "{{#foreach Characters c}}[{{c}}:{{c.Age}}]{{/foreach}}",
			want: "[Ann:34][Bob:]",
		},
		{
			name: "foreach default alias",
			tmpl: "{{#foreach Present}}<{{item}}>{{/foreach}}",
			want: "<Ann><Bob>",
		},
		{
			name: "foreach object list",
			tmpl: "{{#foreach Topics t}}{{t}}={{t.Name}};{{/foreach}}",
			want: "1=work;2=rain;",
		},
		{
			name: "nested foreach",
			tmpl: "{{#foreach Characters c}}{{c}}:{{#foreach c.Outfit o}} {{o}}{{/foreach}};{{/foreach}}",
			want: "Ann: coat boots;Bob:;",
		},
		{
			name: "root fields inside foreach",
			tmpl: "{{#foreach Present p}}{{p}}@{{Time}} {{/foreach}}",
			want: "Ann@10:05 Bob@10:05 ",
		},
		{
			name: "if inside foreach",
			tmpl: "{{#foreach Characters c}}{{#if c.Age}}{{c}} is {{c.Age}}.{{/if}}{{/foreach}}",
			want: "Ann is 34.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.tmpl, inst))
		})
	}
}

func TestRenderMalformed(t *testing.T) {
	inst := instance(t, sceneJSON)

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "unclosed if", tmpl: "{{#if Time}}at {{Time}}", want: "at 10:05"},
		{name: "unclosed foreach", tmpl: "{{#foreach Present p}}{{p}}", want: "AnnBob"},
		{name: "stray closer", tmpl: "a{{/if}}b", want: "a{{/if}}b"},
		{name: "mismatched closer", tmpl: "{{#if Time}}x{{/foreach}}y{{/if}}", want: "x{{/foreach}}y"},
		{name: "unterminated tag", tmpl: "Time {{Time", want: "Time {{Time"},
		{name: "join without separator", tmpl: "{{#join Present}}", want: "{{#join Present}}"},
		{name: "join without field", tmpl: `{{#join ", "}}`, want: `{{#join ", "}}`},
		{name: "unknown block", tmpl: "{{#each Present}}", want: "{{#each Present}}"},
		{name: "foreach without field", tmpl: "{{#foreach }}", want: "{{#foreach }}"},
		{name: "empty tag", tmpl: "{{}}", want: "{{}}"},
		{name: "bad index", tmpl: "{{Present.9}}{{Present.x}}{{Time.0}}", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, Render(tt.tmpl, inst))
			})
		})
	}
}

func TestRenderNilInstance(t *testing.T) {
	assert.Equal(t, "Time: ", Render("Time: {{Time}}{{#foreach Characters c}}{{c}}{{/foreach}}", nil))

	var tmpl *Template
	assert.Equal(t, "", tmpl.Execute(instance(t, sceneJSON)))
}

func TestTemplateReuse(t *testing.T) {
	tmpl := Parse("{{Time}}")
	assert.Equal(t, "10:05", tmpl.Execute(instance(t, `{"Time": "10:05"}`)))
	assert.Equal(t, "11:00", tmpl.Execute(instance(t, `{"Time": "11:00"}`)))
}

func TestTemplateFor(t *testing.T) {
	s, err := tracker.ParseSchema([]byte(`{
		"field-0": {"name": "Time", "type": "STRING", "presence": "DYNAMIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {}},
		"field-1": {"name": "Present", "type": "ARRAY", "presence": "DYNAMIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {}},
		"field-2": {"name": "Stats", "type": "OBJECT", "presence": "STATIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {
			"field-3": {"name": "Height", "type": "STRING", "presence": "STATIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {}}
		}},
		"field-4": {"name": "Bags", "type": "FOR_EACH_ARRAY", "presence": "DYNAMIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {
			"field-5": {"name": "Items", "type": "STRING", "presence": "DYNAMIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {}}
		}},
		"field-6": {"name": "Weather", "type": "STRING", "presence": "DYNAMIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {}}
	}`))
	require.NoError(t, err)

	inst := instance(t, `{
		"Time": "10:05",
		"Present": ["Ann", "Bob"],
		"Stats": {"Height": "180cm"},
		"Bags": {"Ann": {"Items": ["map", "rope"]}, "Bob": {"Items": []}},
		"Weather": ""
	}`)

	want := "Time: 10:05\n" +
		"Present: Ann; Bob\n" +
		"Stats:\n" +
		"  Height: 180cm\n" +
		"Bags:\n" +
		"  Ann:\n" +
		"    Items: map; rope\n" +
		"  Bob:\n"
	assert.Equal(t, want, Render(TemplateFor(s), inst))
}

func TestTemplateForDefaultSchema(t *testing.T) {
	s := tracker.DefaultSchema()
	inst, err := tracker.BuildInstance(s, tracker.IncludeAll, tracker.Example(0))
	require.NoError(t, err)

	out := Render(TemplateFor(s), inst)
	assert.Contains(t, out, "Time: 09:15:30; 10/16/2024 (Wednesday)\n")
	assert.Contains(t, out, "Topics:\n  #1\n    PrimaryTopic: Presentation\n")
	assert.Contains(t, out, "CharactersPresent: Emma Thompson; James Miller; Sophia Rodriguez\n")
	assert.Contains(t, out, "Characters:\n  Emma Thompson:\n    Gender: Female ♀️\n    Age: 34\n")
	assert.NotContains(t, out, "{{")
}

func TestTemplateForEmptySchema(t *testing.T) {
	assert.Equal(t, "", TemplateFor(nil))
	assert.Equal(t, "", TemplateFor(&tracker.Schema{}))
}
