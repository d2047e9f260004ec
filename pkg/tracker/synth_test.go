package tracker

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const presenceSchemaJSON = `{
	"field-0": {"name": "Mood", "type": "STRING", "presence": "DYNAMIC", "prompt": "Mood.", "defaultValue": "calm", "exampleValues": [], "nestedFields": {}},
	"field-1": {"name": "Name", "type": "STRING", "presence": "STATIC", "prompt": "Name.", "defaultValue": "Ann", "exampleValues": [], "nestedFields": {}},
	"field-2": {"name": "Note", "type": "STRING", "presence": "EPHEMERAL", "prompt": "Aside.", "defaultValue": "aside", "exampleValues": [], "nestedFields": {}},
	"field-3": {"name": "People", "type": "FOR_EACH_OBJECT", "presence": "DYNAMIC", "prompt": "Per person:", "defaultValue": "[\"Ann\", \"Bob\"]", "exampleValues": [], "nestedFields": {
		"field-4": {"name": "Eyes", "type": "STRING", "presence": "STATIC", "prompt": "Eye colour.", "defaultValue": "[\"green\", \"brown\"]", "exampleValues": [], "nestedFields": {}},
		"field-5": {"name": "Feeling", "type": "STRING", "presence": "DYNAMIC", "prompt": "Feeling.", "defaultValue": "\"fine\"", "exampleValues": [], "nestedFields": {}},
		"field-6": {"name": "Aside", "type": "STRING", "presence": "EPHEMERAL", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {}}
	}},
	"field-7": {"name": "Stats", "type": "OBJECT", "presence": "STATIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {
		"field-8": {"name": "Height", "type": "STRING", "presence": "STATIC", "prompt": "Height.", "defaultValue": "180cm", "exampleValues": [], "nestedFields": {}}
	}}
}`

func get(t *testing.T, obj *Object, path ...string) Value {
	t.Helper()
	var v Value = obj
	for _, key := range path {
		o, ok := v.(*Object)
		require.True(t, ok, "expected object before %q", key)
		v, ok = o.Get(key)
		require.True(t, ok, "missing key %q", key)
	}
	return v
}

func TestBuildInstanceDefaults(t *testing.T) {
	inst, err := BuildInstance(DefaultSchema(), IncludeAll, Defaults())
	require.NoError(t, err)

	assert.Equal(t, []string{"Time", "Location", "Weather", "Topics", "CharactersPresent", "Characters"}, inst.Keys())
	assert.Equal(t, Scalar("<Updated time if changed>"), get(t, inst, "Time"))
	assert.Equal(t, List{"<List of characters present if changed>"}, get(t, inst, "CharactersPresent"))

	chars := get(t, inst, "Characters").(*Object)
	assert.Equal(t, []string{"<Character Name>"}, chars.Keys())
	assert.Equal(t, Scalar("<Current gender if no update is needed>"), get(t, chars, "<Character Name>", "Gender"))

	topics := get(t, inst, "Topics").(ItemList)
	require.Len(t, topics, 1)
	assert.Equal(t, "<Updated Primary Topic if changed>", topics[0].String("PrimaryTopic"))
}

func TestBuildInstanceExample(t *testing.T) {
	inst, err := BuildInstance(DefaultSchema(), IncludeAll, Example(0))
	require.NoError(t, err)

	assert.Equal(t, Scalar("09:15:30; 10/16/2024 (Wednesday)"), get(t, inst, "Time"))
	assert.Equal(t, List{"Emma Thompson", "James Miller", "Sophia Rodriguez"}, get(t, inst, "CharactersPresent"))

	chars := get(t, inst, "Characters").(*Object)
	if diff := cmp.Diff([]string{"Emma Thompson", "James Miller", "Sophia Rodriguez"}, chars.Keys()); diff != "" {
		t.Errorf("character keys mismatch (-want +got):\n%s", diff)
	}

	emma, _ := chars.Object("Emma Thompson")
	james, _ := chars.Object("James Miller")
	sophia, _ := chars.Object("Sophia Rodriguez")

	assert.Equal(t, "Female ♀️", emma.String("Gender"))
	assert.Equal(t, "Male ♂️", james.String("Gender"))
	assert.Equal(t, "Long curly brown hair, pulled back into a low bun", sophia.String("Hair"))
	assert.Equal(t, "No Child", emma.String("Children"))
	assert.True(t, james.Has("Children"), "short literal lists leave later items blank")
	assert.Equal(t, "", james.String("Children"))

	topics := get(t, inst, "Topics").(ItemList)
	require.Len(t, topics, 1)
	assert.Equal(t, "Presentation", topics[0].String("PrimaryTopic"))
	assert.Equal(t, "Tense", topics[0].String("EmotionalTone"))
}

func TestBuildInstanceQuotedLiteralAppliesToEveryItem(t *testing.T) {
	s := mustSchema(t, presenceSchemaJSON)
	inst, err := BuildInstance(s, IncludeAll, Defaults())
	require.NoError(t, err)

	assert.Equal(t, Scalar("fine"), get(t, inst, "People", "Ann", "Feeling"))
	assert.Equal(t, Scalar("fine"), get(t, inst, "People", "Bob", "Feeling"))
	assert.Equal(t, Scalar("green"), get(t, inst, "People", "Ann", "Eyes"))
	assert.Equal(t, Scalar("brown"), get(t, inst, "People", "Bob", "Eyes"))
}

func TestExampleInstances(t *testing.T) {
	examples, err := ExampleInstances(DefaultSchema(), IncludeAll)
	require.NoError(t, err)
	require.Len(t, examples, 3)

	chars := get(t, examples[2], "Characters").(*Object)
	assert.Equal(t, []string{"Liam Johnson", "Emily Clark"}, chars.Keys())
	assert.Equal(t, Scalar("Unknown"), get(t, chars, "Liam Johnson", "Age"))
	assert.Equal(t, "Relaxation", get(t, examples[2], "Topics").(ItemList)[0].String("PrimaryTopic"))
}

func TestBuildInstancePresenceFiltering(t *testing.T) {
	s := mustSchema(t, presenceSchemaJSON)

	tests := []struct {
		name     string
		include  Include
		wantTop  []string
		wantItem []string
	}{
		{name: "dynamic", include: IncludeDynamic, wantTop: []string{"Mood", "People"}, wantItem: []string{"Feeling"}},
		{name: "static", include: IncludeStatic, wantTop: []string{"Name", "Stats"}},
		{name: "all", include: IncludeAll, wantTop: []string{"Mood", "Name", "Note", "People", "Stats"}, wantItem: []string{"Eyes", "Feeling", "Aside"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := BuildInstance(s, tt.include, Defaults())
			require.NoError(t, err)
			assert.Equal(t, tt.wantTop, inst.Keys())
			if tt.wantItem != nil {
				ann := get(t, inst, "People", "Ann").(*Object)
				assert.Equal(t, tt.wantItem, ann.Keys())
			}
		})
	}
}

func TestBuildInstanceBlank(t *testing.T) {
	inst, err := BuildInstance(DefaultSchema(), IncludeAll, Blank())
	require.NoError(t, err)

	assert.Equal(t, Scalar(""), get(t, inst, "Time"))
	assert.Equal(t, List{}, get(t, inst, "CharactersPresent"))
	assert.Equal(t, 0, get(t, inst, "Characters").(*Object).Len())
	assert.Equal(t, ItemList{}, get(t, inst, "Topics"))
}

func TestBuildInstanceForEachArray(t *testing.T) {
	s := mustSchema(t, `{
		"field-0": {"name": "Inventory", "type": "FOR_EACH_ARRAY", "presence": "DYNAMIC", "prompt": "", "defaultValue": "[\"Ann\", \"Bob\"]", "exampleValues": [], "nestedFields": {
			"field-1": {"name": "Items", "type": "STRING", "presence": "DYNAMIC", "prompt": "", "defaultValue": "[\"sword\", \"\"]", "exampleValues": [], "nestedFields": {}}
		}}
	}`)

	inst, err := BuildInstance(s, IncludeAll, Defaults())
	require.NoError(t, err)
	assert.Equal(t, List{"sword"}, get(t, inst, "Inventory", "Ann", "Items"))
	assert.Equal(t, List{}, get(t, inst, "Inventory", "Bob", "Items"))
}

func TestBuildInstanceArrayObjectItemCount(t *testing.T) {
	s := mustSchema(t, `{
		"field-0": {"name": "Topics", "type": "ARRAY_OBJECT", "presence": "DYNAMIC", "prompt": "", "defaultValue": "", "exampleValues": [""], "nestedFields": {
			"field-1": {"name": "Name", "type": "STRING", "presence": "DYNAMIC", "prompt": "", "defaultValue": "", "exampleValues": ["[\"Work\", \"Play\"]"], "nestedFields": {}},
			"field-2": {"name": "Tone", "type": "STRING", "presence": "DYNAMIC", "prompt": "", "defaultValue": "", "exampleValues": ["Calm"], "nestedFields": {}}
		}}
	}`)

	inst, err := BuildInstance(s, IncludeAll, Example(0))
	require.NoError(t, err)
	topics := get(t, inst, "Topics").(ItemList)
	require.Len(t, topics, 2)
	assert.Equal(t, "Work", topics[0].String("Name"))
	assert.Equal(t, "Play", topics[1].String("Name"))
	assert.Equal(t, "Calm", topics[1].String("Tone"))
}

func TestBuildInstanceMalformedLiteral(t *testing.T) {
	s := &Schema{Fields: Fields{
		{Name: "Present", Type: TypeArray, Presence: PresenceDynamic, DefaultValue: `["Ann", Bob`},
	}}

	_, err := BuildInstance(s, IncludeAll, Defaults())
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Present", se.Path)
	assert.True(t, errors.Is(err, ErrMalformedLiteral))
}

func TestParseArrayLiteral(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{name: "empty list", in: "[]", want: []string{}},
		{name: "two strings", in: `["a", "b"]`, want: []string{"a", "b"}},
		{name: "padding", in: "  [ \"a\" ,\"b\" ]  ", want: []string{"a", "b"}},
		{name: "escaped quote", in: `["say \"hi\""]`, want: []string{`say "hi"`}},
		{name: "unquoted element", in: `[a, "b"]`, wantErr: true},
		{name: "number element", in: `[1]`, wantErr: true},
		{name: "unterminated", in: `["a"`, wantErr: true},
		{name: "trailing text", in: `["a"] extra`, wantErr: true},
		{name: "no bracket", in: `"a"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseArrayLiteral(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedLiteral)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestItemLiteral(t *testing.T) {
	got, err := itemLiteral(`["a", "b"]`, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	got, err = itemLiteral(`["a"]`, 3)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = itemLiteral(`"Male"`, 5)
	require.NoError(t, err)
	assert.Equal(t, "Male", got)

	got, err = itemLiteral("plain text", 0)
	require.NoError(t, err)
	assert.Equal(t, "plain text", got)
}
