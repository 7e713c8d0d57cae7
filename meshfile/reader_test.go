package meshfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// singleTreeMesh is the unit square as a single self-referencing tree:
// every face maps back to element 1, the self-referencing convention for
// "no neighbor", and stores its own face id 0..3 as its transform code.
const singleTreeMesh = `
[Forest Info]
Nk = 1
Nv = 4
Nve = 4

[Coordinates of Element Vertices]
1 0.0 0.0 0.0
2 1.0 0.0 0.0
3 0.0 1.0 0.0
4 1.0 1.0 0.0

[Element to Vertex]
1 1 2 3 4

[Element to Element]
1 1 1 1 1

[Element to Face]
1 0 1 2 3

[Vertex to Element]
1 1 1
2 1 1
3 1 1
4 1 1

[Vertex to Vertex]
1 1 1
2 1 2
3 1 3
4 1 4

[Element Tags]
[Face Tags]
[Curved Faces]
[Curved Types]
`

func TestReadSingleTreeMesh(t *testing.T) {
	c, err := Read(strings.NewReader(singleTreeMesh))
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.True(t, c.IsValid())
	assert.Equal(t, int32(1), c.NumTrees)
	assert.Equal(t, int32(4), c.NumVertices)

	for face := 0; face < 4; face++ {
		nt, code := c.FaceTransform(0, face)
		assert.Equal(t, int32(0), nt)
		assert.Equal(t, face, code)
	}
}

func TestReadRejectsMissingSection(t *testing.T) {
	truncated := `
[Forest Info]
Nk = 1
Nv = 4
Nve = 4

[Coordinates of Element Vertices]
1 0.0 0.0 0.0
2 1.0 0.0 0.0
3 0.0 1.0 0.0
4 1.0 1.0 0.0
`
	_, err := Read(strings.NewReader(truncated))
	assert.Error(t, err)
}

func TestReadRejectsMalformedRow(t *testing.T) {
	bad := strings.Replace(singleTreeMesh, "1 1 2 3 4", "1 1 2 3", 1)
	_, err := Read(strings.NewReader(bad))
	assert.Error(t, err)
}
