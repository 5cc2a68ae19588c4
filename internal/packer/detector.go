package packer

import (
	"path"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Threshold 判定为加固的最低置信度
const Threshold = 0.4

// Detector 基于归档条目的加固检测器
type Detector struct {
	rules  []Rule
	logger *logrus.Logger
}

// NewDetector 使用内置规则创建检测器
func NewDetector(logger *logrus.Logger) *Detector {
	return NewDetectorWithRules(BuiltinRules(), logger)
}

// NewDetectorWithRules 使用自定义规则创建检测器，规则按优先级降序匹配
func NewDetectorWithRules(rules []Rule, logger *logrus.Logger) *Detector {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	return &Detector{
		rules:  sorted,
		logger: logger,
	}
}

// Detect 返回第一个达到阈值的规则，没有命中时 Packed 为 false
func (d *Detector) Detect(entries []Entry) *Info {
	st := d.collect(entries)
	result := &Info{
		NativeLibs: st.nativeLibs,
		DexCount:   st.dexCount,
	}

	for _, rule := range d.rules {
		confidence, indicators := d.match(rule, st)
		if confidence < Threshold {
			continue
		}

		result.Packed = true
		result.Name = rule.Name
		result.Type = rule.Type
		result.Confidence = min(confidence, 1.0)
		result.Indicators = indicators

		d.logger.WithFields(logrus.Fields{
			"packer":     result.Name,
			"type":       result.Type,
			"confidence": result.Confidence,
		}).Info("Packer detected")
		return result
	}

	d.logger.WithFields(logrus.Fields{
		"native_libs": len(st.nativeLibs),
		"dex_count":   st.dexCount,
	}).Debug("No packer detected")
	return result
}

// collect 汇总 Native 库、DEX 以及带特征子串的条目
func (d *Detector) collect(entries []Entry) *stats {
	st := &stats{}
	for _, e := range entries {
		name := e.Name
		switch {
		case strings.HasPrefix(name, "lib/") && strings.HasSuffix(name, ".so"):
			st.nativeLibs = appendUnique(st.nativeLibs, path.Base(name))
			st.nativeSize += e.Size
		case !strings.Contains(name, "/") && strings.HasSuffix(name, ".dex"):
			st.dexSize += e.Size
			st.dexCount++
		}
		if strings.HasPrefix(name, "assets/") {
			st.markerPaths = append(st.markerPaths, strings.ToLower(name))
		}
	}
	return st
}

// match 计算单条规则的置信度
func (d *Detector) match(rule Rule, st *stats) (float64, []string) {
	confidence := 0.0
	var indicators []string

	for _, lib := range st.nativeLibs {
		for _, ruleLib := range rule.NativeLibs {
			if matchLibName(ruleLib, lib) {
				confidence += 0.4
				indicators = append(indicators, "native_lib:"+lib)
				break
			}
		}
	}

	for _, p := range st.markerPaths {
		for _, marker := range rule.Markers {
			if strings.Contains(p, strings.ToLower(marker)) {
				confidence += 0.2
				indicators = append(indicators, "asset:"+p)
				break
			}
		}
	}

	if rule.FileSize.DexMaxKB > 0 && st.dexCount > 0 && st.dexSize/1024 < rule.FileSize.DexMaxKB {
		confidence += 0.4
		indicators = append(indicators, "dex_size_anomaly")
	}
	if rule.FileSize.NativeMinMB > 0 && st.nativeSize/(1024*1024) > rule.FileSize.NativeMinMB {
		confidence += 0.4
		indicators = append(indicators, "native_size_anomaly")
	}

	return confidence, indicators
}

// matchLibName 忽略版本后缀比较库名，例如 libshellx-2.10.3.4.so 匹配 libshellx.so
func matchLibName(pattern, name string) bool {
	if strings.EqualFold(pattern, name) {
		return true
	}
	return libCore(pattern) == libCore(name)
}

func libCore(name string) string {
	core := strings.TrimSuffix(strings.ToLower(name), ".so")
	core = strings.TrimPrefix(core, "lib")
	return strings.Split(core, "-")[0]
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
