package persist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/arabica/internal/classindex"
	arerrors "github.com/standardbeagle/arabica/internal/errors"
)

func sampleIndex() *classindex.Index {
	idx := classindex.New()
	idx.AddAll([]string{
		"com.x.Foo",
		"com.y.Foo",
		"org.Bar",
		"Toplevel",
		"com.x.Outer$Inner",
	})
	return idx
}

func encodeBytes(t *testing.T, idx *classindex.Index) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, idx, gzip.DefaultCompression))
	return buf.Bytes()
}

// gzipRaw compresses payload as-is so tests can hand-craft bad files.
func gzipRaw(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(payload)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// withChecksum appends a valid trailer so decoding reaches the payload checks.
func withChecksum(payload []byte) []byte {
	return binary.LittleEndian.AppendUint64(bytes.Clone(payload), xxhash.Sum64(payload))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, idx := range []*classindex.Index{classindex.New(), sampleIndex()} {
		got, err := Decode(bytes.NewReader(encodeBytes(t, idx)))
		require.NoError(t, err)
		assert.True(t, idx.Equal(got))
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a := classindex.New()
	a.AddAll([]string{"b.Z", "a.Y", "c.X", "a.X"})
	b := classindex.New()
	b.AddAll([]string{"a.X", "c.X", "a.Y", "b.Z"})

	assert.Equal(t, encodePayload(a), encodePayload(b))
}

func TestDecodedSetsAreSorted(t *testing.T) {
	got, err := Decode(bytes.NewReader(encodeBytes(t, sampleIndex())))
	require.NoError(t, err)
	assert.Equal(t, []string{"com.x.Foo", "com.y.Foo"}, got.Lookup("Foo"))
}

func TestDecodeErrors(t *testing.T) {
	good := encodePayload(sampleIndex())

	flipped := bytes.Clone(good)
	flipped[len(flipped)-1] ^= 0xFF

	wrongVersion := bytes.Clone(good)
	wrongVersion[len(magic)] = 9

	misfiled := []byte(magic)
	misfiled = append(misfiled, FormatVersion, 1, 3, 'F', 'o', 'o', 1, 3, 'B', 'a', 'r')

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"not gzip", []byte("plain text file"), ErrBadMagic},
		{"empty file", nil, ErrCorrupt},
		{"truncated gzip", encodeBytes(t, sampleIndex())[:20], ErrCorrupt},
		{"wrong magic", gzipRaw(t, []byte("NOTARABICA-PAYLOAD-0123")), ErrBadMagic},
		{"wrong version", gzipRaw(t, withChecksum(wrongVersion)), ErrUnsupportedVersion},
		{"missing checksum", gzipRaw(t, []byte(magic+"\x01")), ErrCorrupt},
		{"bad checksum", gzipRaw(t, append(bytes.Clone(good), 0, 0, 0, 0, 0, 0, 0, 0)), ErrChecksum},
		{"truncated payload", gzipRaw(t, withChecksum(good[:len(good)-3])), ErrCorrupt},
		{"bit flip", gzipRaw(t, withChecksum(flipped)), ErrCorrupt},
		{"trailing bytes", gzipRaw(t, withChecksum(append(bytes.Clone(good), 7))), ErrCorrupt},
		{"name under wrong key", gzipRaw(t, withChecksum(misfiled)), ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".git", "arabica.db")
	store := NewStore(path, Options{CompressionLevel: -1, CreateDir: true})

	require.NoError(t, store.Save(sampleIndex()))

	got, err := store.Load()
	require.NoError(t, err)
	assert.True(t, sampleIndex().Equal(got))

	info, err := store.Stat()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	// No temp files are left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arabica.db")
	store := NewStore(path, Options{CompressionLevel: 9})

	require.NoError(t, store.Save(sampleIndex()))

	smaller := classindex.New()
	smaller.Add("only.One")
	require.NoError(t, store.Save(smaller))

	got, err := store.Load()
	require.NoError(t, err)
	assert.True(t, smaller.Equal(got))
}

func TestStoreSaveWithoutCreateDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "arabica.db")
	store := NewStore(path, Options{CompressionLevel: -1})

	err := store.Save(sampleIndex())
	require.Error(t, err)

	var persistErr *arerrors.PersistError
	require.True(t, errors.As(err, &persistErr))
	assert.True(t, persistErr.IsNotFound())
	assert.NoDirExists(t, filepath.Dir(path))
}

func TestStoreSaveFailureKeepsPreviousFile(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "arabica.db")
	store := NewStore(path, Options{CompressionLevel: -1})
	require.NoError(t, store.Save(sampleIndex()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0755) })

	err = store.Save(classindex.New())
	require.Error(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "arabica.db"), Options{})

	idx, err := store.Load()
	require.Error(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, 0, idx.Len())

	var persistErr *arerrors.PersistError
	require.True(t, errors.As(err, &persistErr))
	assert.True(t, persistErr.IsNotFound())
}

func TestStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arabica.db")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))

	idx, err := NewStore(path, Options{}).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadMagic)
	require.NotNil(t, idx)
	assert.Equal(t, 0, idx.Count())

	// The empty index is usable
	idx.Add("a.B")
	assert.Equal(t, []string{"a.B"}, idx.Lookup("B"))
}

func BenchmarkEncode(b *testing.B) {
	idx := classindex.New()
	for i := 0; i < 10000; i++ {
		idx.Add("com.example.pkg" + string(rune('a'+i%26)) + ".Class" + string(rune('A'+i%26)) + string(rune('a'+i/26%26)))
	}
	var buf bytes.Buffer
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		buf.Reset()
		_ = Encode(&buf, idx, gzip.DefaultCompression)
	}
}
