package packer

// BuiltinRules 内置加固规则
func BuiltinRules() []Rule {
	return []Rule{
		{
			Name:       "Qihoo 360 Jiagu",
			Type:       TypeNative,
			NativeLibs: []string{"libjiagu.so", "libjiagu_x86.so", "libjiagu_a64.so", "libjiagu_x64.so"},
			Markers:    []string{"assets/libjiagu"},
			Priority:   100,
		},
		{
			Name:       "Tencent Legu",
			Type:       TypeNative,
			NativeLibs: []string{"libshell.so", "libshellx.so", "libshella.so", "libtxmsecurity.so"},
			Markers:    []string{"assets/libshella", "assets/libshellx"},
			Priority:   100,
		},
		{
			Name:       "iJiami",
			Type:       TypeNative,
			NativeLibs: []string{"libexec.so", "libexecmain.so"},
			Markers:    []string{"assets/ijiami", "assets/ijm_lib/"},
			Priority:   100,
		},
		{
			Name:       "Bangcle SecNeo",
			Type:       TypeNative,
			NativeLibs: []string{"libDexHelper.so", "libDexHelper-x86.so", "libSecShell.so", "libSecShell-x86.so"},
			Markers:    []string{"assets/bangcleplugin/", "assets/secdata0.jar"},
			Priority:   100,
		},
		{
			Name:       "Naga",
			Type:       TypeNative,
			NativeLibs: []string{"libnaga.so", "libddog.so", "libedog.so"},
			Priority:   95,
		},
		{
			Name:       "NetEase Yidun",
			Type:       TypeNative,
			NativeLibs: []string{"libnesec.so", "libNetHTProtect.so"},
			Priority:   95,
		},
		{
			Name:       "Alibaba Security",
			Type:       TypeNative,
			NativeLibs: []string{"libmobisec.so", "libsgmain.so", "libsgsecuritybody.so"},
			Markers:    []string{"assets/aliprotect"},
			Priority:   95,
		},
		{
			Name:       "Baidu Protect",
			Type:       TypeNative,
			NativeLibs: []string{"libbaiduprotect.so"},
			Markers:    []string{"assets/baiduprotect"},
			Priority:   90,
		},
		{
			Name:       "PayEgis",
			Type:       TypeNative,
			NativeLibs: []string{"libegis.so", "libNSaferOnly.so"},
			Priority:   90,
		},
		{
			Name:       "Kiwisec",
			Type:       TypeNative,
			NativeLibs: []string{"libkwscmm.so", "libkwscr.so"},
			Priority:   85,
		},
		{
			Name:       "Dingxiang",
			Type:       TypeNative,
			NativeLibs: []string{"libx3g.so"},
			Priority:   85,
		},
		{
			Name:       "DexProtector",
			Type:       TypeVMP,
			NativeLibs: []string{"libdexprotector.so"},
			Markers:    []string{"assets/dp.arm", "assets/dp.mp3"},
			Priority:   80,
		},
		{
			Name:       "Arxan",
			Type:       TypeNative,
			NativeLibs: []string{"libArxanJNI.so", "libArxan.so"},
			Priority:   75,
		},
		{
			Name:       "AppSealing",
			Type:       TypeNative,
			NativeLibs: []string{"libAppSealing.so", "libAppSealingCore.so"},
			Markers:    []string{"assets/appsealing"},
			Priority:   75,
		},
		{
			Name:     "Unknown (tiny DEX)",
			Type:     TypeUnknown,
			FileSize: SizeRule{DexMaxKB: 100},
			Priority: 10,
		},
		{
			Name:     "Unknown (oversized native code)",
			Type:     TypeUnknown,
			FileSize: SizeRule{NativeMinMB: 10},
			Priority: 10,
		},
	}
}
