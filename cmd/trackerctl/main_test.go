package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/scene-tracker/internal/services/queue"
	queuePkg "github.com/jwebster45206/scene-tracker/pkg/queue"
)

const legacySchema = `{
	"field-0": {"name": "Mood", "type": "STRING", "isDynamic": true, "prompt": "Mood.", "defaultValue": "calm", "exampleValues": ["happy"], "nestedFields": {}},
	"field-1": {"name": "Name", "type": "STRING", "isDynamic": false, "prompt": "Name.", "defaultValue": "Ann", "exampleValues": ["Bea"], "nestedFields": {}}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", legacySchema)
	bad := writeFile(t, dir, "bad.json", "{")

	out, err := run(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+good+" (2 top-level fields)")

	out, err = run(t, "validate", good, bad)
	assert.EqualError(t, err, "1 of 2 schema files are invalid")
	assert.Contains(t, out, "ok   "+good)
	assert.Contains(t, out, "FAIL "+bad)

	_, err = run(t, "validate")
	assert.Error(t, err)

	plain := writeFile(t, dir, "plain.yaml", "field-0:\n  name: Mood\n  type: STRING\n")
	out, err = run(t, "validate", plain)
	require.NoError(t, err)
	assert.Contains(t, out, "warn "+plain+": Mood declares no presence, read as DYNAMIC")

	out, err = run(t, "validate", "--strict", plain, good)
	assert.EqualError(t, err, "1 of 2 schema files are invalid")
	assert.Contains(t, out, "FAIL "+plain+`: invalid schema at "Mood": field declares no presence`)
	assert.Contains(t, out, "ok   "+good)
}

func TestMigrate(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "legacy.json", legacySchema)

	t.Run("json to file", func(t *testing.T) {
		target := filepath.Join(dir, "migrated.json")
		out, err := run(t, "migrate", schema, "-o", target)
		require.NoError(t, err)
		assert.Equal(t, "wrote "+target+"\n", out)

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"presence": "DYNAMIC"`)
		assert.Contains(t, string(data), `"presence": "STATIC"`)
		assert.NotContains(t, string(data), "isDynamic")

		// the migrated file loads cleanly
		_, err = run(t, "validate", target)
		assert.NoError(t, err)
	})

	t.Run("yaml to stdout", func(t *testing.T) {
		out, err := run(t, "migrate", schema, "--format", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "field-1:")
		assert.Contains(t, out, "presence: STATIC")
		assert.NotContains(t, out, "isDynamic")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := run(t, "migrate", schema, "--format", "toml")
		assert.Error(t, err)
	})
}

func TestExampleAndPrompt(t *testing.T) {
	schema := writeFile(t, t.TempDir(), "schema.json", legacySchema)

	tests := []struct {
		name     string
		args     []string
		contains []string
		excludes []string
		wantErr  bool
	}{
		{
			name:     "example json",
			args:     []string{"example", schema, "--format", "json"},
			contains: []string{`"Mood": "happy"`, `"Name": "Bea"`},
		},
		{
			name:     "defaults",
			args:     []string{"example", schema, "--defaults", "--format", "json"},
			contains: []string{`"Mood": "calm"`, `"Name": "Ann"`},
		},
		{
			name:     "dynamic only",
			args:     []string{"example", schema, "--include", "dynamic", "--format", "json"},
			contains: []string{`"Mood": "happy"`},
			excludes: []string{"Name"},
		},
		{
			name:     "tagged",
			args:     []string{"example", schema, "--tagged"},
			contains: []string{"<tracker>", "</tracker>", "Mood: happy"},
		},
		{name: "negative index", args: []string{"example", schema, "--index", "-1"}, wantErr: true},
		{name: "bad include", args: []string{"example", schema, "--include", "some"}, wantErr: true},
		{
			name:     "prompt",
			args:     []string{"prompt", schema},
			contains: []string{"- **Mood**: Mood."},
			excludes: []string{"Name"},
		},
		{
			name:     "prompt all",
			args:     []string{"prompt", schema, "--include", "all"},
			contains: []string{"- **Mood**: Mood.", "- **Name**: Name."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestRenderAndClean(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "schema.json", legacySchema)
	full := writeFile(t, dir, "full.json", `{"Mood": "happy", "Name": "Bea"}`)
	partial := writeFile(t, dir, "partial.yaml", "<tracker>\nMood: \"\"\nName: Bea\n</tracker>")
	tmpl := writeFile(t, dir, "display.txt", "{{Name}} feels {{Mood}}")

	out, err := run(t, "render", schema, full, "--template", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "Bea feels happy\n", out)

	out, err = run(t, "render", schema, "--print-template")
	require.NoError(t, err)
	assert.Contains(t, out, "{{Mood}}")

	_, err = run(t, "render", schema)
	assert.Error(t, err)

	out, err = run(t, "clean", schema, partial)
	require.NoError(t, err)
	assert.Equal(t, "Name: Bea\n", out)

	out, err = run(t, "clean", schema, partial, "--output-format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Name": "Bea"`)
	assert.NotContains(t, out, "Mood")
}

func TestEnqueue(t *testing.T) {
	mr := miniredis.RunT(t)
	chatID := uuid.New()

	out, err := run(t, "enqueue", "--redis", mr.Addr(), "--chat", chatID.String(), "--index", "3", "--type", "auto")
	require.NoError(t, err)
	assert.Contains(t, out, "(auto, message 3), queue depth 1")

	client, err := queue.NewClient(mr.Addr(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer client.Close()

	pending, err := queue.NewRequestQueue(client).Peek(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, queuePkg.RequestTypeAuto, pending[0].Type)
	assert.Equal(t, chatID, pending[0].ChatID)
	assert.Equal(t, 3, pending[0].MessageIndex)
	assert.Equal(t, -1, pending[0].Anchor)
	assert.Equal(t, "dynamic", pending[0].Include)

	out, err = run(t, "enqueue", "pending", "--redis", mr.Addr())
	require.NoError(t, err)
	assert.Contains(t, out, pending[0].RequestID)
	assert.Contains(t, out, "message=3")

	out, err = run(t, "enqueue", "pending", "--redis", mr.Addr(), "--clear")
	require.NoError(t, err)
	assert.Equal(t, "queue cleared\n", out)

	out, err = run(t, "enqueue", "pending", "--redis", mr.Addr())
	require.NoError(t, err)
	assert.Equal(t, "queue is empty\n", out)
}

func TestEnqueueRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing chat", args: []string{"enqueue"}},
		{name: "bad chat id", args: []string{"enqueue", "--chat", "nope"}},
		{name: "negative index", args: []string{"enqueue", "--chat", uuid.NewString(), "--index", "-2"}},
		{name: "bad type", args: []string{"enqueue", "--chat", uuid.NewString(), "--type", "later"}},
		{name: "bad include", args: []string{"enqueue", "--chat", uuid.NewString(), "--include", "some"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
