package release

import (
	"errors"
	"fmt"

	"github.com/release-hub/release-hub/internal/upstream"
)

// CodeMissingConfiguration 是配置缺失时返回给客户端的错误码。
const CodeMissingConfiguration = "missing_configuration_properties"

// ConfigurationError 在构造 Cache 时报告缺失或矛盾的配置，不可重试。
type ConfigurationError struct {
	Code    string
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FetchError 表示 releases 列表在重试耗尽后仍无法获取或无法解析。
// 它不会被缓存，下一次读取会重新发起请求。
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("fetching releases from %s (status %d): %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetching releases from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ManifestFetchError 表示辅助清单文件获取失败。它只会被记录日志，不影响刷新结果。
type ManifestFetchError struct {
	Name string
	URL  string
	Err  error
}

func (e *ManifestFetchError) Error() string {
	return fmt.Sprintf("caching %s from %s: %v", e.Name, e.URL, e.Err)
}

func (e *ManifestFetchError) Unwrap() error {
	return e.Err
}

func newFetchError(url string, err error) *FetchError {
	fe := &FetchError{URL: url, Err: err}
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		fe.Status = statusErr.StatusCode
	}
	return fe
}
