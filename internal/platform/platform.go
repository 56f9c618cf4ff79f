// Package platform maps release asset filenames and client-supplied platform
// names onto the short platform tags used as keys in a release snapshot.
package platform

import (
	"path"
	"strings"
)

// 平台标识，作为 Snapshot.Platforms 的键。
const (
	Windows  = "win"
	MacOS    = "mac"
	Debian   = "deb"
	RPM      = "rpm"
	AppImage = "appimage"
)

// MacOSUpdate 标识 macOS 的 .zip 构建：自动更新使用它，.dmg 只用于手动下载。
const MacOSUpdate = "darwin"

// arm64Suffix 追加在 arm64 构建的平台标识之后，例如 mac_arm64。
const arm64Suffix = "_arm64"

var aliases = map[string]string{
	"win":      Windows,
	"win32":    Windows,
	"windows":  Windows,
	"exe":      Windows,
	"mac":      MacOS,
	"macos":    MacOS,
	"osx":      MacOS,
	"darwin":   MacOS,
	"dmg":      MacOS,
	"deb":      Debian,
	"debian":   Debian,
	"rpm":      RPM,
	"fedora":   RPM,
	"appimage": AppImage,
	"linux":    AppImage,
}

// Classifier is the default filename classifier.
type Classifier struct{}

// Classify implements the release cache classifier contract.
func (Classifier) Classify(name string) (string, bool) {
	return Classify(name)
}

// Classify 根据文件名推断平台。无法识别时返回 false。
func Classify(name string) (string, bool) {
	lower := strings.ToLower(name)
	ext := strings.TrimPrefix(path.Ext(lower), ".")

	var tag string
	switch ext {
	case "exe":
		tag = Windows
	case "dmg":
		tag = MacOS
	case "zip":
		if strings.Contains(lower, "mac") || strings.Contains(lower, "darwin") || strings.Contains(lower, "osx") {
			tag = MacOSUpdate
		}
	case "deb":
		tag = Debian
	case "rpm":
		tag = RPM
	case "appimage":
		tag = AppImage
	}
	if tag == "" {
		return "", false
	}

	if isARM64(lower) {
		tag += arm64Suffix
	}
	return tag, true
}

// Resolve 将路由参数中的平台别名归一化为平台标识，保留 _arm64 后缀。
func Resolve(alias string) (string, bool) {
	lower, suffix := splitArch(strings.ToLower(strings.TrimSpace(alias)))
	tag, ok := aliases[lower]
	if !ok {
		return "", false
	}
	return tag + suffix, true
}

// ForUpdate 返回自动更新应使用的资产平台标识：macOS 客户端只能安装 .zip。
func ForUpdate(tag string) string {
	base, suffix := splitArch(tag)
	if base == MacOS {
		return MacOSUpdate + suffix
	}
	return tag
}

// ForDownload 按优先级返回手动下载可用的资产平台标识。
// macOS 优先 .dmg，没有时退回 .zip。
func ForDownload(tag string) []string {
	base, suffix := splitArch(tag)
	if base == MacOS {
		return []string{MacOS + suffix, MacOSUpdate + suffix}
	}
	return []string{tag}
}

// FromUserAgent 从浏览器 User-Agent 推断下载平台。
// iOS 的 UA 同样包含 "like Mac OS X"，需先排除。
func FromUserAgent(ua string) (string, bool) {
	switch {
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPad"), strings.Contains(ua, "iPod"):
		return "", false
	case strings.Contains(ua, "Windows"):
		return Windows, true
	case strings.Contains(ua, "Macintosh"), strings.Contains(ua, "Mac OS X"):
		return MacOS, true
	case strings.Contains(ua, "Android"):
		return "", false
	case strings.Contains(ua, "Linux"):
		return AppImage, true
	default:
		return "", false
	}
}

func splitArch(tag string) (base, suffix string) {
	if strings.HasSuffix(tag, arm64Suffix) {
		return strings.TrimSuffix(tag, arm64Suffix), arm64Suffix
	}
	return tag, ""
}

func isARM64(lower string) bool {
	return strings.Contains(lower, "arm64") || strings.Contains(lower, "aarch64")
}
