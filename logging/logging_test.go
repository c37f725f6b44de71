package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	ctx, err := New(Options{})
	require.NoError(t, err)
	defer ctx.Close()

	assert.Equal(t, logrus.InfoLevel, ctx.Logger().GetLevel())
	assert.Equal(t, os.Stderr, ctx.Logger().Out)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cow.log")

	ctx, err := New(Options{Level: "debug", Output: path, Format: FormatJSON})
	require.NoError(t, err)

	ctx.For("pipeline", "TestFileOutput").Debug("barrier satisfied")
	require.NoError(t, ctx.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.True(t, strings.Contains(line, `"function":"TestFileOutput"`), line)
	assert.True(t, strings.Contains(line, `"package":"pipeline"`), line)
	assert.True(t, strings.Contains(line, "barrier satisfied"), line)
}

func TestSetLevel(t *testing.T) {
	ctx := Discard()
	require.NoError(t, ctx.SetLevel("warn"))
	assert.Equal(t, logrus.WarnLevel, ctx.Logger().GetLevel())
	assert.Error(t, ctx.SetLevel("nope"))
}

func TestOrDiscard(t *testing.T) {
	entry := OrDiscard(nil)
	require.NotNil(t, entry)
	entry.Error("dropped")

	own := logrus.NewEntry(logrus.New())
	assert.Same(t, own, OrDiscard(own))
}

func TestCloseIsIdempotent(t *testing.T) {
	ctx := Discard()
	assert.NoError(t, ctx.Close())
	assert.NoError(t, ctx.Close())
}
