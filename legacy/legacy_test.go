package legacy_test

import (
	"bytes"
	"testing"

	"github.com/bodgit/zxgames/blob"
	"github.com/bodgit/zxgames/legacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	assets := []blob.Asset{
		{Filename: "3dshow_demo.z80", Payload: make([]byte, 24760)},
		{Filename: "bmxsim.z80", Payload: make([]byte, 38872)},
		{Filename: "BombJack.z80", Payload: make([]byte, 40918)},
	}

	games, err := legacy.Table(0x1007f100, assets)
	require.NoError(t, err)

	assert.Equal(t, []legacy.Game{
		{Name: "3dshow_demo", Keymap: "keymap_3dshow_demo", Address: 0x1007f100, Size: 24760},
		{Name: "Bmxsim", Keymap: "keymap_bmxsim", Address: 0x100851b8, Size: 38872},
		{Name: "Bombjack", Keymap: "keymap_bombjack", Address: 0x1008e990, Size: 40918},
	}, games)
}

func TestTableOverflow(t *testing.T) {
	_, err := legacy.Table(0xffffff00, []blob.Asset{{Filename: "big.z80", Payload: make([]byte, 0x200)}})
	assert.Error(t, err)
}

func TestWriteHeader(t *testing.T) {
	b := new(bytes.Buffer)
	require.NoError(t, legacy.WriteHeader(b, []legacy.Game{
		{Name: "Jetpac", Keymap: "keymap_jetpac", Address: 0x100a30cc, Size: 10848},
	}))

	assert.Contains(t, b.String(), "} GamesTable[] = {\n")
	assert.Contains(t, b.String(), `    {"Jetpac", (void*)0x100a30cc, 10848, keymap_jetpac},`+"\n};\n")
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Skooldaze", legacy.DisplayName("SKOOLDAZE"))
	assert.Equal(t, "", legacy.DisplayName(""))
	assert.Equal(t, "Élite", legacy.DisplayName("élite"))
	assert.Equal(t, "Ärger", legacy.DisplayName("äRGER"))
	assert.Equal(t, "keymap_ik", legacy.KeymapSymbol("IK"))
}

func TestTableDottedNames(t *testing.T) {
	games, err := legacy.Table(0x1007f100, []blob.Asset{
		{Filename: "3dshow.demo.z80", Payload: make([]byte, 16)},
		{Filename: "manic", Payload: make([]byte, 8)},
	})
	require.NoError(t, err)

	assert.Equal(t, []legacy.Game{
		{Name: "3dshow.demo", Keymap: "keymap_3dshow.demo", Address: 0x1007f100, Size: 16},
		{Name: "Manic", Keymap: "keymap_manic", Address: 0x1007f110, Size: 8},
	}, games)
}

func TestName(t *testing.T) {
	assert.Equal(t, "3dshow.demo", legacy.Name("3dshow.demo.z80"))
	assert.Equal(t, "jetpac", legacy.Name("jetpac.z80"))
	assert.Equal(t, "jetpac", legacy.Name("jetpac"))
}
