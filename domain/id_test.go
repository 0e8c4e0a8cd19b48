package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  ID
		valid bool
	}{
		{name: "canonical", raw: "64b7f0c2a1b2c3d4e5f60718", want: "64b7f0c2a1b2c3d4e5f60718", valid: true},
		{name: "upper case folds", raw: "64B7F0C2A1B2C3D4E5F60718", want: "64b7f0c2a1b2c3d4e5f60718", valid: true},
		{name: "empty", raw: ""},
		{name: "too short", raw: "64b7f0c2"},
		{name: "non hex", raw: "zzb7f0c2a1b2c3d4e5f60718"},
		{name: "uuid", raw: "0b6c9a4e-2c1f-4d8e-9a57-3f7b2c1d0e9a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseID(tt.raw)
			if !tt.valid {
				require.Error(t, err)
				assert.True(t, IsDomainError(err, ErrCodeInvalidIdentifier))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestParseIDsStopsAtFirstBadID(t *testing.T) {
	good := NewID()
	_, err := ParseIDs(good.String(), "bad", good.String())
	assert.Equal(t, ErrCodeInvalidIdentifier, CodeOf(err))

	ids, err := ParseIDs(good.String())
	require.NoError(t, err)
	assert.Equal(t, []ID{good}, ids)
}

func TestObjectIDRoundTrip(t *testing.T) {
	id := NewID()
	assert.Equal(t, id, IDFromObjectID(id.ObjectID()))
	assert.True(t, ID("nope").ObjectID().IsZero())
}
