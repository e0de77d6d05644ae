package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withBuild подменяет значения, которые в релизе проставляет -ldflags.
func withBuild(t *testing.T, v, c, d string) {
	t.Helper()
	prevV, prevC, prevD := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() { version, commit, date = prevV, prevC, prevD })
}

func TestDefaults(t *testing.T) {
	v, c, d := Info()
	assert.Equal(t, "dev", v)
	assert.Equal(t, "unknown", c)
	assert.Equal(t, "unknown", d)
}

func TestGetters_ReturnLinkedValues(t *testing.T) {
	withBuild(t, "v1.4.0", "3f2a9c1", "2026-10-01T12:00:00Z")

	assert.Equal(t, "v1.4.0", GetVersion())
	assert.Equal(t, "3f2a9c1", GetCommit())
	assert.Equal(t, "2026-10-01T12:00:00Z", GetDate())

	v, c, d := Info()
	assert.Equal(t, []string{GetVersion(), GetCommit(), GetDate()}, []string{v, c, d})
}

func TestString_NamesTheService(t *testing.T) {
	withBuild(t, "v1.4.0", "3f2a9c1", "2026-10-01")

	s := String()
	require.True(t, strings.HasPrefix(s, "storefront "), "got %q", s)
	assert.Equal(t, "storefront version=v1.4.0 commit=3f2a9c1 date=2026-10-01", s)
}
