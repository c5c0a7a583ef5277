package blob_test

import (
	"bytes"
	"io"
	"io/ioutil"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/bodgit/zxgames/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func join(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func TestEncodeScenario(t *testing.T) {
	assets := []blob.Asset{
		{Filename: "alpha.z80", Payload: []byte{0x01, 0x02, 0x03, 0x04}},
		{Filename: "beta.z80", Payload: []byte{}},
	}

	b, err := blob.Marshal(assets, []byte{0xff, 0xff})
	require.NoError(t, err)

	expected := join(
		[]byte(blob.Magic),
		[]byte{0x05, 'a', 'l', 'p', 'h', 'a', 0x04, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04},
		[]byte{0x04, 'b', 'e', 't', 'a', 0x00, 0x00, 0x00, 0x00},
		[]byte{0x00},
		[]byte{0xff, 0xff},
	)
	assert.Equal(t, expected, b)
	assert.Equal(t, int64(len(expected)), blob.Size(assets, 2))
}

func TestEncodeEmpty(t *testing.T) {
	aux := []byte("keymaps")

	b, err := blob.Marshal(nil, aux)
	require.NoError(t, err)
	assert.Equal(t, join([]byte(blob.Magic), []byte{0x00}, aux), b)
	assert.Len(t, blob.Magic, 16)
}

func TestEncodeNameLength(t *testing.T) {
	tables := map[string]struct {
		filename string
		err      error
	}{
		"max": {
			filename: strings.Repeat("a", blob.MaxNameLength) + ".z80",
		},
		"too long": {
			filename: strings.Repeat("a", blob.MaxNameLength+1) + ".z80",
			err:      blob.ErrNameTooLong,
		},
		"empty": {
			filename: ".z80",
			err:      blob.ErrEmptyName,
		},
	}

	for name, table := range tables {
		t.Run(name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			err := blob.Encode(buf, []blob.Asset{{Filename: table.filename, Payload: []byte{1}}}, nil)
			if table.err != nil {
				assert.ErrorIs(t, err, table.err)
				assert.Contains(t, err.Error(), table.filename)
				assert.Zero(t, buf.Len(), "nothing written on failure")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, byte(blob.MaxNameLength), buf.Bytes()[len(blob.Magic)])
		})
	}
}

func TestEncodeRejectsBeforeWriting(t *testing.T) {
	buf := new(bytes.Buffer)
	err := blob.Encode(buf, []blob.Asset{
		{Filename: "good.z80", Payload: []byte{1, 2, 3}},
		{Filename: strings.Repeat("x", 300) + ".z80"},
	}, []byte{0xff})
	assert.ErrorIs(t, err, blob.ErrNameTooLong)
	assert.Zero(t, buf.Len())
}

func TestWriteEntryTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)
	w := blob.NewWriter(buf)
	err := w.WriteEntry("huge", blob.MaxSize+1, bytes.NewReader(nil))
	assert.ErrorIs(t, err, blob.ErrAssetTooLarge)
	assert.Zero(t, buf.Len())
}

func TestWriteEntryShortPayload(t *testing.T) {
	w := blob.NewWriter(ioutil.Discard)
	err := w.WriteEntry("short", 10, bytes.NewReader([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteAfterFinish(t *testing.T) {
	w := blob.NewWriter(ioutil.Discard)
	require.NoError(t, w.Finish(nil))
	assert.ErrorIs(t, w.WriteEntry("late", 0, bytes.NewReader(nil)), blob.ErrFinished)
	assert.ErrorIs(t, w.Finish(nil), blob.ErrFinished)
}

func TestName(t *testing.T) {
	tables := map[string]string{
		"alpha.z80":        "alpha",
		"alpha":            "alpha",
		"3dshow.demo.z80":  "3dshow",
		"games/jetpac.z80": "jetpac",
		".hidden":          "",
	}

	for filename, expected := range tables {
		assert.Equal(t, expected, blob.Name(filename), filename)
	}
}

func testAssets() []blob.Asset {
	assets := []blob.Asset{
		{Filename: "valley.z80", Payload: bytes.Repeat([]byte{0xaa}, 1000)},
		{Filename: "bombjack.z80", Payload: []byte("bombjack")},
		{Filename: "thrust.z80", Payload: []byte{}},
		{Filename: "jetpac.z80", Payload: []byte{0x00, 0x00, 0x00}},
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Filename < assets[j].Filename })
	return assets
}

func TestRoundTrip(t *testing.T) {
	assets := testAssets()
	aux := []byte{0x07, '1', 0x08, 0xff, 0x00, 0x00}

	b, err := blob.Marshal(assets, aux)
	require.NoError(t, err)

	decoded, err := blob.Decode(b)
	require.NoError(t, err)

	require.Len(t, decoded.Entries, len(assets))
	for i, e := range decoded.Entries {
		assert.Equal(t, assets[i].Name(), e.Name)
		assert.Equal(t, assets[i].Payload, e.Payload)
		assert.Equal(t, uint32(len(assets[i].Payload)), e.Size)
		assert.NotZero(t, len(e.Name))
	}
	assert.Equal(t, aux, decoded.Aux)

	again, err := decoded.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestDeterministic(t *testing.T) {
	b1, err := blob.Marshal(testAssets(), []byte{1})
	require.NoError(t, err)
	b2, err := blob.Marshal(testAssets(), []byte{1})
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestOrderingAndTerminator(t *testing.T) {
	assets := testAssets()
	b, err := blob.Marshal(assets, []byte{0xff})
	require.NoError(t, err)

	decoded, err := blob.Decode(b)
	require.NoError(t, err)

	for i := 1; i < len(decoded.Entries); i++ {
		prev, cur := decoded.Entries[i-1], decoded.Entries[i]
		assert.Less(t, prev.Name, cur.Name)
		assert.Less(t, prev.Offset, cur.Offset)
	}

	last := decoded.Entries[len(decoded.Entries)-1]
	end := last.Offset + 1 + int64(len(last.Name)) + 4 + int64(last.Size)
	assert.Equal(t, byte(0x00), b[end])
	assert.Equal(t, int64(len(blob.Magic)), decoded.Entries[0].Offset)
}

func TestReaderSkipsPayloads(t *testing.T) {
	b, err := blob.Marshal(testAssets(), []byte("tail"))
	require.NoError(t, err)

	r, err := blob.NewReader(bytes.NewReader(b))
	require.NoError(t, err)

	var names []string
	for {
		h, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, h.Name)

		// Only read a single byte from the valley payload, the rest
		// must be skipped by the next call
		if h.Name == "valley" {
			var p [1]byte
			_, err := r.Read(p[:])
			require.NoError(t, err)
			assert.Equal(t, byte(0xaa), p[0])
		}
	}
	assert.Equal(t, []string{"bombjack", "jetpac", "thrust", "valley"}, names)

	aux, err := r.Aux()
	require.NoError(t, err)
	assert.Equal(t, []byte("tail"), aux)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderAuxBeforeEnd(t *testing.T) {
	b, err := blob.Marshal(testAssets(), nil)
	require.NoError(t, err)

	r, err := blob.NewReader(bytes.NewReader(b))
	require.NoError(t, err)

	_, err = r.Aux()
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	good, err := blob.Marshal(testAssets(), nil)
	require.NoError(t, err)

	tables := map[string]struct {
		data []byte
		err  error
	}{
		"empty": {
			data: nil,
			err:  blob.ErrBadMagic,
		},
		"bad magic": {
			data: []byte("ZX2040GAMESBLOB0\x00"),
			err:  blob.ErrBadMagic,
		},
		"no terminator": {
			data: []byte(blob.Magic),
			err:  blob.ErrTruncated,
		},
		"truncated header": {
			data: join([]byte(blob.Magic), []byte{0x05, 'a', 'l'}),
			err:  blob.ErrTruncated,
		},
		"truncated payload": {
			data: good[:len(good)-10],
			err:  blob.ErrTruncated,
		},
		"oversized entry": {
			data: join([]byte(blob.Magic), []byte{0x01, 'x', 0xff, 0xff, 0xff, 0xff, 0x00}),
			err:  blob.ErrTruncated,
		},
	}

	for name, table := range tables {
		t.Run(name, func(t *testing.T) {
			_, err := blob.Decode(table.data)
			assert.ErrorIs(t, err, table.err)
		})
	}
}

func TestDecodeOversizedEntryAllocation(t *testing.T) {
	data := join([]byte(blob.Magic), []byte{0x01, 'x', 0xff, 0xff, 0xff, 0x7f})

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := blob.Decode(data)
	runtime.ReadMemStats(&after)

	assert.ErrorIs(t, err, blob.ErrTruncated)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}

func TestFind(t *testing.T) {
	b, err := blob.Marshal(testAssets(), nil)
	require.NoError(t, err)

	image := bytes.Repeat([]byte{0xff}, 3*blob.DefaultAlignment)
	copy(image[2*blob.DefaultAlignment:], b)

	// A marker that isn't on a boundary is ignored
	copy(image[100:], blob.Magic)

	off, err := blob.Find(image, blob.DefaultAlignment)
	require.NoError(t, err)
	assert.Equal(t, 2*blob.DefaultAlignment, off)

	decoded, err := blob.Decode(image[off:])
	require.NoError(t, err)
	assert.Len(t, decoded.Entries, 4)

	_, err = blob.Find(image[:blob.DefaultAlignment], blob.DefaultAlignment)
	assert.ErrorIs(t, err, blob.ErrNotFound)

	_, err = blob.Find(image, 0)
	assert.Error(t, err)
}

func TestEncodeLegacy(t *testing.T) {
	assets := testAssets()

	buf := new(bytes.Buffer)
	require.NoError(t, blob.EncodeLegacy(buf, assets))

	var expected []byte
	for _, a := range assets {
		expected = append(expected, a.Payload...)
	}
	assert.Equal(t, expected, buf.Bytes())
	assert.False(t, bytes.Contains(buf.Bytes(), []byte(blob.Magic)))
}
