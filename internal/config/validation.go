package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
)

// DefaultAPIBaseURL 是 GitHub REST API 的默认地址。
const DefaultAPIBaseURL = "https://api.github.com"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
// 仓库坐标（Account/Repository/URL）的必填校验由 release.New 负责，
// 以便在缺失时仍能启动并返回 400 提示。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	if g.MaxAttempts < 1 {
		return newFieldError("Global.MaxAttempts", "至少为 1")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("Global.InitialBackoff", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.RateLimit < 0 {
		return newFieldError("Global.RateLimit", "不能为负数")
	}

	r := c.Repository
	if r.Interval < 0 {
		return newFieldError(repositoryField("Interval"), "不能为负数")
	}
	if err := validateHTTPURL(r.APIBaseURL); err != nil {
		return fmt.Errorf("%s: %w", repositoryField("APIBaseURL"), err)
	}
	if r.URL != "" {
		if err := validateHTTPURL(r.URL); err != nil {
			return fmt.Errorf("%s: %w", repositoryField("URL"), err)
		}
	}

	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
