package exchange

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensevis/internal/fsutil"
	"github.com/banshee-data/sensevis/internal/occupancy"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []occupancy.Detection
	}{
		{"empty", "", nil},
		{"whitespace", " \n", nil},
		{"single pair", "[16, 12]", []occupancy.Detection{{X: 16, Y: 12}}},
		{"blank pair", "[0,0]", []occupancy.Detection{{}}},
		{"list", "[[1.5, 2], [30, 20.25]]", []occupancy.Detection{{X: 1.5, Y: 2}, {X: 30, Y: 20.25}}},
		{"list of one", "[[3, 4]]", []occupancy.Detection{{X: 3, Y: 4}}},
		{"empty list", "[]", []occupancy.Detection{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Decode([]byte(tt.in))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{`{"x":1}`, `[1,2,3]`, `[[1,2,3]]`, `["a","b"]`, `[1]`} {
		_, err := Decode([]byte(in))
		assert.True(t, errors.Is(err, ErrMalformed), "input %s", in)
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	data, err := Encode(Blank)
	require.NoError(t, err)
	assert.JSONEq(t, `[0,0]`, string(data))

	data, err = Encode([]occupancy.Detection{{X: 1, Y: 2}, {X: 3.5, Y: 4}})
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,2],[3.5,4]]`, string(data))

	data, err = Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestReadWriteClear(t *testing.T) {
	t.Parallel()

	m := fsutil.NewMemoryFileSystem()

	dets, err := Read(m, "data.json")
	require.NoError(t, err)
	assert.Empty(t, dets, "missing file means nothing detected")

	want := []occupancy.Detection{{X: 10, Y: 5}, {X: 20, Y: 15}}
	require.NoError(t, Write(m, "data.json", want))
	got, err := Read(m, "data.json")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, Clear(m, "data.json"))
	got, err = Read(m, "data.json")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRead_Malformed(t *testing.T) {
	t.Parallel()

	m := fsutil.NewMemoryFileSystem()
	require.NoError(t, m.WriteFile("data.json", []byte(`"oops"`), 0o644))
	_, err := Read(m, "data.json")
	assert.True(t, errors.Is(err, ErrMalformed))
}
