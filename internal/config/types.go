package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数：监听端口、日志以及访问上游的重试/限流策略。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	// MaxAttempts 为每次上游请求的总尝试次数（含首次），至少为 1。
	MaxAttempts     int      `mapstructure:"MaxAttempts"`
	InitialBackoff  Duration `mapstructure:"InitialBackoff"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	// RateLimit 为每分钟允许发往上游的请求数，0 表示不限流。
	RateLimit int `mapstructure:"RateLimit"`
}

// RepositoryConfig 指向被代理的 GitHub 仓库。
type RepositoryConfig struct {
	Account    string `mapstructure:"Account"`
	Repository string `mapstructure:"Repository"`
	Token      string `mapstructure:"Token"`
	Pre        bool   `mapstructure:"Pre"`
	// URL 是本服务对外暴露的地址，私有仓库模式下用于生成下载链接。
	URL string `mapstructure:"URL"`
	// Interval 是缓存过期时间，单位为分钟。
	Interval   int    `mapstructure:"Interval"`
	APIBaseURL string `mapstructure:"APIBaseURL"`
}

// Config 是 TOML 文件与环境变量合并后的整体结构。
type Config struct {
	Global     GlobalConfig     `mapstructure:",squash"`
	Repository RepositoryConfig `mapstructure:"Repository"`
}

// HasToken 表示是否以私有仓库模式访问上游。
func (r RepositoryConfig) HasToken() bool {
	return strings.TrimSpace(r.Token) != ""
}

// AuthMode 输出 `credentialed` 或 `anonymous`，供日志字段使用。
func (r RepositoryConfig) AuthMode() string {
	if r.HasToken() {
		return "credentialed"
	}
	return "anonymous"
}

// Slug 返回 owner/name 形式的仓库标识。
func (r RepositoryConfig) Slug() string {
	return r.Account + "/" + r.Repository
}

// IntervalDuration 将分钟数转换为 time.Duration。
func (r RepositoryConfig) IntervalDuration() time.Duration {
	return time.Duration(r.Interval) * time.Minute
}
