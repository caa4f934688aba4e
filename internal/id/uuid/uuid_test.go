package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)

	require.NotEqual(t, id1, id2)
	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	require.Equal(t, goUUID.Version(7), parsed.Version())
	require.True(t, Valid(id1))
	require.LessOrEqual(t, id1, id2, "v7 ids sort by creation time")
}

func TestValid(t *testing.T) {
	t.Parallel()

	require.True(t, Valid("0190b7a4-3c2d-7e1f-8a9b-0c1d2e3f4a5b"))
	require.False(t, Valid(""))
	require.False(t, Valid("not-a-uuid"))
	require.False(t, Valid("{0190b7a4-3c2d-7e1f-8a9b-0c1d2e3f4a5b}"), "only the canonical form is accepted")
	require.False(t, Valid("0190B7A4-3C2D-7E1F-8A9B-0C1D2E3F4A5B"))
}
