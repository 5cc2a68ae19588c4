package packer

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector() *Detector {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewDetector(logger)
}

func TestDetect_NotPacked(t *testing.T) {
	d := newTestDetector()

	info := d.Detect([]Entry{
		{Name: "AndroidManifest.xml", Size: 4096},
		{Name: "classes.dex", Size: 3 * 1024 * 1024},
		{Name: "lib/arm64-v8a/libnative-lib.so", Size: 200 * 1024},
		{Name: "res/mipmap-hdpi/ic_launcher.png", Size: 2048},
	})

	assert.False(t, info.Packed)
	assert.Empty(t, info.Name)
	assert.Equal(t, 1, info.DexCount)
	assert.Equal(t, []string{"libnative-lib.so"}, info.NativeLibs)
}

func TestDetect_NativeLibWithMarker(t *testing.T) {
	d := newTestDetector()

	info := d.Detect([]Entry{
		{Name: "classes.dex", Size: 2 * 1024 * 1024},
		{Name: "lib/armeabi-v7a/libjiagu.so", Size: 512 * 1024},
		{Name: "lib/arm64-v8a/libjiagu.so", Size: 512 * 1024},
		{Name: "assets/libjiagu_a64.so", Size: 512 * 1024},
	})

	require.True(t, info.Packed)
	assert.Equal(t, "Qihoo 360 Jiagu", info.Name)
	assert.Equal(t, TypeNative, info.Type)
	assert.InDelta(t, 0.6, info.Confidence, 1e-9)
	assert.Contains(t, info.Indicators, "native_lib:libjiagu.so")
	assert.Contains(t, info.Indicators, "asset:assets/libjiagu_a64.so")
	assert.Equal(t, []string{"libjiagu.so"}, info.NativeLibs)
}

func TestDetect_VersionedLibName(t *testing.T) {
	d := newTestDetector()

	info := d.Detect([]Entry{
		{Name: "classes.dex", Size: 2 * 1024 * 1024},
		{Name: "lib/armeabi/libshellx-2.10.3.4.so", Size: 300 * 1024},
	})

	require.True(t, info.Packed)
	assert.Equal(t, "Tencent Legu", info.Name)
}

func TestDetect_TinyDex(t *testing.T) {
	d := newTestDetector()

	info := d.Detect([]Entry{
		{Name: "classes.dex", Size: 20 * 1024},
		{Name: "assets/payload.bin", Size: 4 * 1024 * 1024},
	})

	require.True(t, info.Packed)
	assert.Equal(t, TypeUnknown, info.Type)
	assert.Equal(t, []string{"dex_size_anomaly"}, info.Indicators)
}

func TestDetect_NoDexSkipsSizeRules(t *testing.T) {
	d := newTestDetector()

	info := d.Detect([]Entry{
		{Name: "AndroidManifest.xml", Size: 1024},
	})

	assert.False(t, info.Packed)
	assert.Zero(t, info.DexCount)
}

func TestDetect_ConfidenceCapped(t *testing.T) {
	d := newTestDetector()

	info := d.Detect([]Entry{
		{Name: "classes.dex", Size: 30 * 1024},
		{Name: "lib/arm64-v8a/libDexHelper.so", Size: 1024},
		{Name: "lib/x86/libSecShell-x86.so", Size: 1024},
		{Name: "lib/x86/libSecShell.so", Size: 1024},
		{Name: "assets/secData0.jar", Size: 1024},
	})

	require.True(t, info.Packed)
	assert.Equal(t, "Bangcle SecNeo", info.Name)
	assert.Equal(t, 1.0, info.Confidence)
}

func TestNewDetectorWithRules_Priority(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	d := NewDetectorWithRules([]Rule{
		{Name: "low", Type: TypeNative, NativeLibs: []string{"libguard.so"}, Priority: 1},
		{Name: "high", Type: TypeVMP, NativeLibs: []string{"libguard.so"}, Priority: 50},
	}, logger)

	info := d.Detect([]Entry{{Name: "lib/x86_64/libguard.so", Size: 10}})
	require.True(t, info.Packed)
	assert.Equal(t, "high", info.Name)
}

func TestMatchLibName(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"libjiagu.so", "libjiagu.so", true},
		{"libshellx.so", "libshellx-2.10.3.4.so", true},
		{"libDexHelper.so", "libdexhelper.so", true},
		{"libshell.so", "libshellx.so", false},
		{"libc.so", "libcrypto.so", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchLibName(tt.pattern, tt.name))
		})
	}
}
