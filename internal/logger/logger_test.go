package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	SetFormat("text")
	SetLevel("WARN")
	t.Cleanup(func() {
		SetLevel("INFO")
		SetWriter(os.Stdout)
	})

	Info("hidden: id=%s", "a")
	Warn("shown: id=%s", "b")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown: id=b")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	SetFormat("json")
	SetLevel("debug")
	t.Cleanup(func() {
		SetFormat("text")
		SetLevel("INFO")
		SetWriter(os.Stdout)
	})

	Debug("session created: id=%s", "s1")

	var line map[string]string
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "DEBUG", line["level"])
	assert.Equal(t, "session created: id=s1", line["msg"])
}
