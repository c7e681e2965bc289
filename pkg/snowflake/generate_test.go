package snowflake

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInit_RejectsOutOfRange(t *testing.T) {
	require.Error(t, Init(32, 0))
	require.Error(t, Init(0, -1))
}

func TestNextJourneyID_Unique(t *testing.T) {
	require.NoError(t, Init(1, 1))

	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id, err := NextJourneyID()
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(id, JourneyIDPrefix))
		_, dup := seen[id]
		require.False(t, dup, "duplicate journey id %s", id)
		seen[id] = struct{}{}
	}
}

func TestParseJourneyID(t *testing.T) {
	require.NoError(t, Init(3, 2))

	id, err := NextJourneyID()
	require.NoError(t, err)
	sf, err := ParseJourneyID(id)
	require.NoError(t, err)
	require.Equal(t, int64(2<<5|3), sf.Node())

	_, err = ParseJourneyID("x_1")
	require.Error(t, err)
	_, err = ParseJourneyID("j_abc")
	require.Error(t, err)
}
