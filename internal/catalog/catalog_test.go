package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	movies, ok := c.Category("movies")
	require.True(t, ok, "default catalog must contain movies")
	assert.Equal(t, "movies", c.First().ID)
	for _, b := range movies.Boards {
		assert.Len(t, b.Clues16, BoardSize)
	}

	metas := c.Categories()
	require.NotEmpty(t, metas)
	assert.Equal(t, Meta{ID: "movies", Name: "Movies", Icon: movies.Icon}, metas[0])
}

func TestLoadRejectsShortBoard(t *testing.T) {
	doc := `{"categories":[{"id":"x","name":"X","boards":[{"name":"b","clues16":["a","b"]}]}]}`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 2 clues")
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	board := `{"name":"b","clues16":["1","2","3","4","5","6","7","8","9","10","11","12","13","14","15","16"]}`
	doc := `{"categories":[{"id":"x","name":"X","boards":[` + board + `]},{"id":"x","name":"Y","boards":[` + board + `]}]}`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadRejectsEmpty(t *testing.T) {
	_, err := Load(strings.NewReader(`{"categories":[]}`))
	assert.Error(t, err)

	_, err = Load(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestUnknownCategory(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	_, ok := c.Category("nope")
	assert.False(t, ok)
}
