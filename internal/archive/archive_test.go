package archive

import (
	"archive/zip"
	"bytes"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildTestPackage(t *testing.T, manifestJSON string, files map[string][]byte) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("manifest.json")
	assert.NoError(t, err)
	_, err = w.Write([]byte(manifestJSON))
	assert.NoError(t, err)

	for name, content := range files {
		w, err := zw.Create(name)
		assert.NoError(t, err)
		_, err = w.Write(content)
		assert.NoError(t, err)
	}

	assert.NoError(t, zw.Close())

	f, err := ioutil.TempFile("", "nrfdfu-pkg-*.zip")
	assert.NoError(t, err)
	_, err = f.Write(buf.Bytes())
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

func TestOpenAndReadApplicationFirmware(t *testing.T) {
	manifest := `{"manifest":{"application":{"dat_file":"app.dat","bin_file":"app.bin"}}}`
	path := buildTestPackage(t, manifest, map[string][]byte{
		"app.dat": {0x01, 0x02, 0x03},
		"app.bin": {0xAA, 0xBB, 0xCC, 0xDD},
	})

	pkg, err := Open(path)
	assert.NoError(t, err)
	defer pkg.Close()

	initPacket, image, err := pkg.Firmware()
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, initPacket)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, image)
}

func TestFirmwarePrefersApplicationOverSoftdevice(t *testing.T) {
	manifest := `{"manifest":{
		"softdevice":{"dat_file":"sd.dat","bin_file":"sd.bin"},
		"application":{"dat_file":"app.dat","bin_file":"app.bin"}
	}}`
	path := buildTestPackage(t, manifest, map[string][]byte{
		"sd.dat":  {0x11},
		"sd.bin":  {0x22},
		"app.dat": {0x33},
		"app.bin": {0x44},
	})

	pkg, err := Open(path)
	assert.NoError(t, err)
	defer pkg.Close()

	initPacket, image, err := pkg.Firmware()
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x33}, initPacket)
	assert.Equal(t, []byte{0x44}, image)
}

func TestMissingManifestIsAnError(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	assert.NoError(t, zw.Close())

	f, err := ioutil.TempFile("", "nrfdfu-pkg-*.zip")
	assert.NoError(t, err)
	_, err = f.Write(buf.Bytes())
	assert.NoError(t, err)
	assert.NoError(t, f.Close())
	t.Cleanup(func() { os.Remove(f.Name()) })

	pkg, err := Open(f.Name())
	assert.NoError(t, err)
	defer pkg.Close()

	_, _, err = pkg.Firmware()
	assert.Error(t, err)
}
