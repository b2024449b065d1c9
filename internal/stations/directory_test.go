package stations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgoodall/trainboard/internal/domain"
	"github.com/dgoodall/trainboard/internal/stations"
)

func TestLoad_parsesEmbeddedData(t *testing.T) {
	d, err := stations.Load()

	require.NoError(t, err)
	name, ok := d.Lookup("PAD")
	require.True(t, ok)
	assert.Equal(t, "London Paddington", name)
}

func TestLookup_caseInsensitive(t *testing.T) {
	d, err := stations.Load()
	require.NoError(t, err)

	name, ok := d.Lookup("rdg")
	require.True(t, ok)
	assert.Equal(t, "Reading", name)

	_, ok = d.Lookup("XXX")
	assert.False(t, ok)
}

func TestSearch_matchesCodeAndName(t *testing.T) {
	d, err := stations.Load()
	require.NoError(t, err)

	byName := d.Search("london")
	assert.NotEmpty(t, byName)
	for _, s := range byName {
		assert.Contains(t, s.Name, "London")
	}

	byCode := d.Search("pad")
	require.NotEmpty(t, byCode)
	assert.Equal(t, "PAD", byCode[0].CRS)

	assert.Empty(t, d.Search(""))
}

func TestValidate(t *testing.T) {
	d, err := stations.Load()
	require.NoError(t, err)

	assert.NoError(t, d.Validate("PAD", "RDG"))

	err = d.Validate("PAD", "ZZZ")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorContains(t, err, "ZZZ")

	assert.ErrorIs(t, d.Validate(), domain.ErrValidation)
}
