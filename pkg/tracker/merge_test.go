package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obj(t *testing.T, data string) *Object {
	t.Helper()
	o, err := Decode(data, FormatJSON)
	require.NoError(t, err)
	return o
}

func assertSameInstance(t *testing.T, want, got *Object) {
	t.Helper()
	w, err := Encode(want, FormatJSON)
	require.NoError(t, err)
	g, err := Encode(got, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, w, g)
}

func TestUpdateSceneScenario(t *testing.T) {
	s := mustSchema(t, sceneSchemaJSON)
	prev := obj(t, `{"Time": "10:00", "Location": "Park"}`)

	cand, err := Deserialize(`<tracker>{"Time":"10:05"}</tracker>`, FormatJSON)
	require.NoError(t, err)

	res := Update(prev, cand, s, UpdateOptions{Include: IncludeAll, Full: true})
	assertSameInstance(t, obj(t, `{"Time": "10:05", "Location": "Park"}`), res.Instance)
	assert.Empty(t, res.ShapeErrors)
}

func TestUpdatePresence(t *testing.T) {
	s := mustSchema(t, sceneSchemaJSON)

	tests := []struct {
		name string
		prev string
		cand string
		want string
	}{
		{
			name: "static kept when candidate is silent",
			prev: `{"Time": "10:00", "Location": "Jane"}`,
			cand: `{"Time": "10:01"}`,
			want: `{"Time": "10:01", "Location": "Jane"}`,
		},
		{
			name: "static kept over candidate value",
			prev: `{"Time": "10:00", "Location": "Jane"}`,
			cand: `{"Location": "Jordan"}`,
			want: `{"Time": "10:00", "Location": "Jane"}`,
		},
		{
			name: "static adopts candidate when previous is empty",
			prev: `{"Time": "10:00", "Location": ""}`,
			cand: `{"Location": "Jordan"}`,
			want: `{"Time": "10:00", "Location": "Jordan"}`,
		},
		{
			name: "static adopts candidate when previous is missing",
			prev: `{}`,
			cand: `{"Location": "Jordan"}`,
			want: `{"Time": "", "Location": "Jordan"}`,
		},
		{
			name: "dynamic overwritten",
			prev: `{"Time": "Jane", "Location": "Park"}`,
			cand: `{"Time": "Jordan"}`,
			want: `{"Time": "Jordan", "Location": "Park"}`,
		},
		{
			name: "dynamic overwritten with empty value",
			prev: `{"Time": "10:00", "Location": "Park"}`,
			cand: `{"Time": ""}`,
			want: `{"Time": "", "Location": "Park"}`,
		},
		{
			name: "unknown keys dropped",
			prev: `{"Time": "10:00", "Location": "Park", "Old": "x"}`,
			cand: `{"Bogus": "y"}`,
			want: `{"Time": "10:00", "Location": "Park"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Update(obj(t, tt.prev), obj(t, tt.cand), s, UpdateOptions{Include: IncludeAll, Full: true})
			assertSameInstance(t, obj(t, tt.want), res.Instance)
		})
	}
}

func TestUpdateAuthored(t *testing.T) {
	s := mustSchema(t, sceneSchemaJSON)
	prev := obj(t, `{"Time": "10:00", "Location": "Park"}`)

	tests := []struct {
		name string
		cand string
		want string
	}{
		{name: "authored static replaces previous", cand: `{"Location": "Library"}`, want: `{"Time": "10:00", "Location": "Library"}`},
		{name: "omitted fields carried over", cand: `{"Time": "12:00"}`, want: `{"Time": "12:00", "Location": "Park"}`},
		{name: "authored empty clears static", cand: `{"Location": ""}`, want: `{"Time": "10:00", "Location": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Update(prev, obj(t, tt.cand), s, UpdateOptions{Include: IncludeAll, Full: true, Authored: true})
			assertSameInstance(t, obj(t, tt.want), res.Instance)
		})
	}

	plain := Update(prev, obj(t, `{"Location": "Library"}`), s, UpdateOptions{Include: IncludeAll, Full: true})
	assert.Equal(t, "Park", plain.Instance.String("Location"))
}

func TestUpdateEphemeral(t *testing.T) {
	s := mustSchema(t, presenceSchemaJSON)
	prev := obj(t, `{"Mood": "calm", "Name": "Ann"}`)
	cand := obj(t, `{"Note": "whispers"}`)

	res := Update(prev, cand, s, UpdateOptions{Include: IncludeAll, Full: true})
	assert.Equal(t, "whispers", res.Instance.String("Note"))

	baseline := StripEphemeral(res.Instance, s)
	assert.False(t, baseline.Has("Note"))
	assert.Equal(t, "Ann", baseline.String("Name"))

	next := Update(baseline, obj(t, `{}`), s, UpdateOptions{Include: IncludeAll, Full: true})
	assert.Equal(t, "", next.Instance.String("Note"))
}

func TestUpdateForEachUnion(t *testing.T) {
	s := mustSchema(t, presenceSchemaJSON)
	prev := obj(t, `{"People": {
		"A": {"Eyes": "green", "Feeling": "sad"},
		"B": {"Eyes": "brown", "Feeling": "ok"}
	}}`)
	cand := obj(t, `{"People": {
		"B": {"Feeling": "great"},
		"C": {"Eyes": "blue", "Feeling": "fine"}
	}}`)

	res := Update(prev, cand, s, UpdateOptions{Include: IncludeAll, Full: true})
	people, ok := res.Instance.Object("People")
	require.True(t, ok)

	assert.ElementsMatch(t, []string{"A", "B", "C"}, people.Keys())
	assert.Equal(t, []string{"B", "C", "A"}, people.Keys(), "candidate items come first")

	a, _ := people.Object("A")
	b, _ := people.Object("B")
	c, _ := people.Object("C")
	assert.Equal(t, "sad", a.String("Feeling"))
	assert.Equal(t, "green", a.String("Eyes"))
	assert.Equal(t, "great", b.String("Feeling"))
	assert.Equal(t, "brown", b.String("Eyes"), "static field kept from the previous item")
	assert.Equal(t, "blue", c.String("Eyes"))
	assert.True(t, c.Has("Aside"), "full structure fills missing leaves")
}

func TestUpdateWholeListReplacement(t *testing.T) {
	s := mustSchema(t, `{
		"field-0": {"name": "Present", "type": "ARRAY", "presence": "DYNAMIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {}},
		"field-1": {"name": "Topics", "type": "ARRAY_OBJECT", "presence": "DYNAMIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {
			"field-2": {"name": "Topic", "type": "STRING", "presence": "DYNAMIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {}}
		}},
		"field-3": {"name": "Known", "type": "ARRAY", "presence": "STATIC", "prompt": "", "defaultValue": "", "exampleValues": [], "nestedFields": {}}
	}`)
	prev := obj(t, `{"Present": ["Ann", "Bob"], "Topics": [{"Topic": "work"}, {"Topic": "rain"}], "Known": ["Ann"]}`)

	tests := []struct {
		name string
		cand string
		want string
	}{
		{
			name: "candidate list replaces previous",
			cand: `{"Present": ["Cid"], "Topics": [{"Topic": "lunch", "Extra": "dropped"}], "Known": ["Cid"]}`,
			want: `{"Present": ["Cid"], "Topics": [{"Topic": "lunch"}], "Known": ["Ann"]}`,
		},
		{
			name: "missing lists keep previous",
			cand: `{}`,
			want: `{"Present": ["Ann", "Bob"], "Topics": [{"Topic": "work"}, {"Topic": "rain"}], "Known": ["Ann"]}`,
		},
		{
			name: "scalar promoted to one element list",
			cand: `{"Present": "Dee"}`,
			want: `{"Present": ["Dee"], "Topics": [{"Topic": "work"}, {"Topic": "rain"}], "Known": ["Ann"]}`,
		},
		{
			name: "empty candidate list clears",
			cand: `{"Present": [], "Topics": []}`,
			want: `{"Present": [], "Topics": [], "Known": ["Ann"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Update(prev, obj(t, tt.cand), s, UpdateOptions{Include: IncludeAll, Full: true})
			assertSameInstance(t, obj(t, tt.want), res.Instance)
		})
	}
}

func TestUpdateIncludePassesOtherFieldsThrough(t *testing.T) {
	s := mustSchema(t, sceneSchemaJSON)
	prev := obj(t, `{"Time": "10:00", "Location": ""}`)
	cand := obj(t, `{"Time": "10:05", "Location": "Park"}`)

	res := Update(prev, cand, s, UpdateOptions{Include: IncludeStatic, Full: true})
	assert.Equal(t, "10:00", res.Instance.String("Time"), "dynamic field is outside the policy")
	assert.Equal(t, "Park", res.Instance.String("Location"))
}

func TestUpdateWithoutFullStructure(t *testing.T) {
	s := mustSchema(t, presenceSchemaJSON)
	res := Update(obj(t, `{"Mood": ""}`), obj(t, `{"Name": "Ann"}`), s, UpdateOptions{Include: IncludeAll})

	assert.Equal(t, []string{"Name"}, res.Instance.Keys())

	full := Update(obj(t, `{"Mood": ""}`), obj(t, `{"Name": "Ann"}`), s, UpdateOptions{Include: IncludeAll, Full: true})
	assert.Equal(t, []string{"Mood", "Name", "Note", "People", "Stats"}, full.Instance.Keys())
}

func TestUpdateShapeErrorsAreIsolated(t *testing.T) {
	s := mustSchema(t, presenceSchemaJSON)
	prev := obj(t, `{"Mood": "calm", "Name": "Ann", "People": {"A": {"Feeling": "ok"}}}`)
	cand := obj(t, `{"Mood": {"nested": "nope"}, "Name": "Bea", "People": "everyone"}`)

	res := Update(prev, cand, s, UpdateOptions{Include: IncludeAll, Full: true})

	assert.Equal(t, "calm", res.Instance.String("Mood"))
	a, ok := get(t, res.Instance, "People").(*Object).Object("A")
	require.True(t, ok)
	assert.Equal(t, "ok", a.String("Feeling"))

	require.Len(t, res.ShapeErrors, 2)
	assert.Equal(t, "Mood", res.ShapeErrors[0].Path)
	assert.Equal(t, ShapeScalar, res.ShapeErrors[0].Want)
	assert.Equal(t, "object", res.ShapeErrors[0].Got)
	assert.Equal(t, "People", res.ShapeErrors[1].Path)
	assert.Equal(t, ShapeKeyedItems, res.ShapeErrors[1].Want)
}

func TestUpdateIsIdempotent(t *testing.T) {
	s := DefaultSchema()
	examples, err := ExampleInstances(s, IncludeAll)
	require.NoError(t, err)
	defaults, err := BuildInstance(s, IncludeAll, Defaults())
	require.NoError(t, err)

	for i, x := range append(examples, defaults) {
		text, err := Serialize(x, s, IncludeAll, FormatJSON)
		require.NoError(t, err)
		again, err := Decode(text, FormatJSON)
		require.NoError(t, err)

		res := Update(x, again, s, UpdateOptions{Include: IncludeAll, Full: true})
		assert.True(t, x.Equal(res.Instance), "instance %d changed after merging with itself", i)
	}
}

func TestUpdateDoesNotModifyInputs(t *testing.T) {
	s := DefaultSchema()
	prev, err := BuildInstance(s, IncludeAll, Example(0))
	require.NoError(t, err)
	cand, err := BuildInstance(s, IncludeAll, Example(1))
	require.NoError(t, err)
	prevCopy, candCopy := prev.Clone(), cand.Clone()

	res := Update(prev, cand, s, UpdateOptions{Include: IncludeAll, Full: true})
	res.Instance.Set("Time", Scalar("mutated"))
	chars, _ := res.Instance.Object("Characters")
	chars.Delete("Emma Thompson")

	assert.True(t, prev.Equal(prevCopy))
	assert.True(t, cand.Equal(candCopy))
}

func TestMergeResultRender(t *testing.T) {
	s := mustSchema(t, sceneSchemaJSON)
	res := Update(obj(t, `{"Location": "Park"}`), obj(t, `{"Time": "10:05"}`), s, UpdateOptions{Include: IncludeAll, Full: true})

	out, err := res.Render(s, FormatYAML)
	require.NoError(t, err)
	assert.Contains(t, out, "Time: ")
	assert.Contains(t, out, "10:05")
	assert.Contains(t, out, "Location: Park")
}
