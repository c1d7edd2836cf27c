package source

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danmuck/protolist/internal/testutil/testlog"
)

func compress(t *testing.T, c Codec, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, c)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestCodecsRoundTrip(t *testing.T) {
	testlog.Start(t)
	data := bytes.Repeat([]byte("protolist frame payload "), 500)
	for _, c := range Codecs() {
		if c == Auto {
			continue
		}
		packed := compress(t, c, data)
		r, err := NewReader(bytes.NewReader(packed), c)
		require.NoError(t, err, c)
		got, err := io.ReadAll(r)
		require.NoError(t, err, c)
		require.NoError(t, r.Close())
		require.Equal(t, data, got, c)
	}
}

func TestOpenSelectsCodecByExtension(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	data := []byte("\x03abc")
	cases := map[string]Codec{
		"rows.bin":     None,
		"rows.bin.gz":  Gzip,
		"rows.bin.zst": Zstd,
		"rows.bin.sz":  Snappy,
		"rows.bin.lz4": LZ4,
	}
	for name, c := range cases {
		require.Equal(t, c, FromFileExtension(name))
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, compress(t, c, data), 0o644))

		rc, err := Open(path, Auto)
		require.NoError(t, err, name)
		got, err := io.ReadAll(rc)
		require.NoError(t, err, name)
		require.NoError(t, rc.Close())
		require.Equal(t, data, got, name)
	}
}

func TestExplicitCodecOverridesExtension(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "rows.dat")
	require.NoError(t, os.WriteFile(path, compress(t, Zstd, []byte("xyz")), 0o644))
	rc, err := Open(path, Zstd)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, []byte("xyz"), got)
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec(" GZIP ")
	require.NoError(t, err)
	require.Equal(t, Gzip, c)
	c, err = ParseCodec("")
	require.NoError(t, err)
	require.Equal(t, Auto, c)
	_, err = ParseCodec("brotli")
	require.ErrorIs(t, err, ErrUnknownCodec)
	for _, want := range Codecs() {
		got, err := ParseCodec(string(want))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.gz"), Auto)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCorruptGzipFailsOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))
	_, err := Open(path, Auto)
	require.Error(t, err)
}
