package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultPath 是未显式指定时使用的配置文件路径。
const DefaultPath = "config.toml"

// envBindings 兼容原有部署方式中直接使用的环境变量名。
var envBindings = map[string][]string{
	"ListenPort":            {"PORT"},
	"Repository.Account":    {"ACCOUNT"},
	"Repository.Repository": {"REPOSITORY"},
	"Repository.Token":      {"TOKEN"},
	"Repository.Pre":        {"PRE"},
	"Repository.URL":        {"URL", "VERCEL_URL"},
	"Repository.Interval":   {"INTERVAL"},
}

// Load 读取 TOML 配置文件并叠加环境变量，同时注入默认值与校验逻辑。
// 当 path 为空或指向默认路径且文件不存在时，仅使用环境变量。
func Load(path string) (*Config, error) {
	explicit := path != "" && path != DefaultPath
	if path == "" {
		path = DefaultPath
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if explicit || fileExists(path) {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyRepositoryDefaults(&cfg.Repository)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv 读取工作目录下的 .env，已存在的环境变量优先。
func loadDotEnv() error {
	if !fileExists(".env") {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("读取 .env 失败: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return !errors.Is(err, fs.ErrNotExist)
	}
	return !info.IsDir()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 3000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("MaxAttempts", 3)
	v.SetDefault("InitialBackoff", "1s")
	v.SetDefault("UpstreamTimeout", "30s")
	v.SetDefault("RateLimit", 60)
	v.SetDefault("Repository.Interval", 15)
	v.SetDefault("Repository.APIBaseURL", DefaultAPIBaseURL)
}

func bindEnv(v *viper.Viper) error {
	for key, names := range envBindings {
		input := append([]string{key}, names...)
		if err := v.BindEnv(input...); err != nil {
			return fmt.Errorf("绑定环境变量 %s 失败: %w", key, err)
		}
	}
	return nil
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 3000
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.InitialBackoff.DurationValue() == 0 {
		g.InitialBackoff = Duration(time.Second)
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}
}

func applyRepositoryDefaults(r *RepositoryConfig) {
	r.Account = strings.TrimSpace(r.Account)
	r.Repository = strings.TrimSpace(r.Repository)
	r.Token = strings.TrimSpace(r.Token)
	r.URL = strings.TrimRight(strings.TrimSpace(r.URL), "/")
	if r.URL != "" && !strings.Contains(r.URL, "://") {
		// VERCEL_URL 不带协议头。
		r.URL = "https://" + r.URL
	}
	if r.Interval == 0 {
		r.Interval = 15
	}
	if strings.TrimSpace(r.APIBaseURL) == "" {
		r.APIBaseURL = DefaultAPIBaseURL
	}
	r.APIBaseURL = strings.TrimRight(r.APIBaseURL, "/")
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
