package packer

// Info 加固检测结果
type Info struct {
	Packed     bool     `json:"packed" yaml:"packed"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Type       string   `json:"type,omitempty" yaml:"type,omitempty"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	Indicators []string `json:"indicators,omitempty" yaml:"indicators,omitempty"`
	NativeLibs []string `json:"native_libs,omitempty" yaml:"native_libs,omitempty"`
	DexCount   int      `json:"dex_count" yaml:"dex_count"`
}

// 加固类型
const (
	TypeNative     = "native"      // 原生库加密
	TypeDexEncrypt = "dex_encrypt" // DEX 加密
	TypeVMP        = "vmp"         // 虚拟机保护
	TypeUnknown    = "unknown"
)

// Entry 归档条目的名称和解压后大小
type Entry struct {
	Name string
	Size int64
}

// Rule 加固识别规则，只依赖归档中的文件名和大小
type Rule struct {
	Name       string
	Type       string
	NativeLibs []string // 特征 .so 文件名
	Markers    []string // 条目路径中的特征子串
	FileSize   SizeRule
	Priority   int // 越大越优先
}

// SizeRule 大小异常规则
type SizeRule struct {
	DexMaxKB    int64 // DEX 总大小低于此值可疑
	NativeMinMB int64 // Native 库总大小高于此值可疑
}

// stats 从条目列表汇总出的统计
type stats struct {
	nativeLibs  []string
	markerPaths []string
	dexSize     int64
	nativeSize  int64
	dexCount    int
}
