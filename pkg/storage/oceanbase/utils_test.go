package oceanbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRoundTrip(t *testing.T) {
	in := []float64{0.25, -1, 0.5}
	s := vectorToString(in)
	assert.Equal(t, "[0.25,-1,0.5]", s)

	out, err := stringToVector(s)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestStringToVector_Invalid(t *testing.T) {
	_, err := stringToVector("[0.1,abc]")
	assert.Error(t, err)

	empty, err := stringToVector("[]")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLimitClause(t *testing.T) {
	assert.Equal(t, "", limitClause(0))
	assert.Equal(t, " LIMIT 5", limitClause(5))
}
