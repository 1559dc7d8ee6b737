package registry

import (
	"errors"
	"testing"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
	"github.com/stretchr/testify/require"
)

func TestGetUnknownModel(t *testing.T) {
	r := New()
	_, err := r.Get("does-not-exist")
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrUnknownModel))
}

func TestInterfaceSchemeRoundTrip(t *testing.T) {
	r := New()
	for _, model := range r.Models() {
		img, err := r.Get(model)
		require.NoError(t, err)

		scheme := img.Scheme
		for i := 0; i < scheme.Cardinality(); i++ {
			name, err := scheme.NameOf(i)
			require.NoError(t, err, "model %s idx %d", model, i)

			idx, err := scheme.IdxOf(name)
			require.NoError(t, err, "model %s name %s", model, name)
			require.Equal(t, i, idx, "model %s: idx_of(name_of(%d)) mismatch", model, i)
		}

		for _, name := range scheme.AllNames() {
			idx, err := scheme.IdxOf(name)
			require.NoError(t, err)

			got, err := scheme.NameOf(idx)
			require.NoError(t, err)
			require.Equal(t, name, got, "model %s: name_of(idx_of(%s)) mismatch", model, name)
		}
	}
}

func TestManagementIndexNeverInDataRange(t *testing.T) {
	r := New()
	for _, model := range r.Models() {
		img, _ := r.Get(model)
		scheme := img.Scheme
		if !scheme.HasManagement() {
			continue
		}
		mgmt := scheme.ManagementIndex()
		require.False(t, scheme.IsData(mgmt), "model %s: mgmt index %d must not be a data index", model, mgmt)
	}
}

func TestGigEScheme(t *testing.T) {
	s := gigEScheme(8, 2)
	require.Equal(t, 11, s.Cardinality()) // 1 mgmt + 2 reserved + 8 data
	require.Equal(t, 3, s.FirstDataIndex())
	require.True(t, s.IsReserved(1))
	require.True(t, s.IsReserved(2))
	require.True(t, s.IsData(3))
	require.False(t, s.IsData(2))
}
