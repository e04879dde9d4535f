package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestZipUnzip_RoundTrip(t *testing.T) {
	in := []Entry{
		{Name: "b.py", Data: []byte("print(2)\n")},
		{Name: "a.cpython-311-x86_64-linux-gnu.so", Data: []byte{0x7f, 'E', 'L', 'F', 0, 1}},
		{Name: "pyarmor_runtime_000000/__init__.py", Data: []byte("# runtime")},
		{Name: "empty.py", Data: []byte{}},
	}
	raw, err := Zip(in)
	require.NoError(t, err)

	out, err := Unzip(raw)
	require.NoError(t, err)
	require.Len(t, out, len(in))

	want := map[string][]byte{}
	for _, e := range in {
		want[e.Name] = e.Data
	}
	got := map[string][]byte{}
	for _, e := range out {
		got[e.Name] = e.Data
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestZip_DeterministicAndSorted(t *testing.T) {
	in := []Entry{{Name: "z.py", Data: []byte("z")}, {Name: "a.py", Data: []byte("a")}}
	first, err := Zip(in)
	require.NoError(t, err)
	second, err := Zip([]Entry{in[1], in[0]})
	require.NoError(t, err)
	require.True(t, bytes.Equal(first, second), "archives differ for same content")

	out, err := Unzip(first)
	require.NoError(t, err)
	require.Equal(t, "a.py", out[0].Name)
	require.Equal(t, "z.py", out[1].Name)
}

func TestZip_RejectsUnsafeAndDuplicateNames(t *testing.T) {
	for _, name := range []string{"", "../evil.py", "/etc/passwd", ".."} {
		_, err := Zip([]Entry{{Name: name}})
		require.Truef(t, errors.Is(err, ErrUnsafePath), "name %q: got %v", name, err)
	}
	_, err := Zip([]Entry{{Name: "a.py"}, {Name: "./a.py"}})
	require.Error(t, err)
}

func TestUnzip_RejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../../escape.py")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Unzip(buf.Bytes())
	require.ErrorIs(t, err, ErrUnsafePath)
}
