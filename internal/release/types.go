package release

import (
	"encoding/json"
	"errors"
	"maps"
	"math"
	"slices"
	"strings"
	"time"
)

// ManifestFile 是被特殊处理的辅助清单资产：内容被缓存到 Snapshot.Files，
// 不出现在平台与资产列表中。
const ManifestFile = "releases.win.json"

const (
	// DefaultInterval 是未配置时的缓存过期时间。
	DefaultInterval = 15 * time.Minute
	// DefaultAPIBaseURL 是 GitHub REST API 的默认地址。
	DefaultAPIBaseURL = "https://api.github.com"

	listAccept     = "application/vnd.github.preview"
	manifestAccept = "application/octet-stream"
)

// Config 描述被代理的仓库，构造后不可修改。
type Config struct {
	Account    string
	Repository string
	Token      string
	// Pre 为 true 时只选择预发布版本，否则只选择正式版本。
	Pre bool
	// URL 是本服务的公开地址，私有仓库模式下必填。
	URL        string
	Interval   time.Duration
	APIBaseURL string
}

// Private 表示是否以 token 访问私有仓库。
func (c Config) Private() bool {
	return c.Token != ""
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Account) == "" || strings.TrimSpace(c.Repository) == "" {
		return &ConfigurationError{
			Code:    CodeMissingConfiguration,
			Field:   "Repository.Account/Repository",
			Message: "ACCOUNT and REPOSITORY must both be defined",
		}
	}
	if c.Token != "" && strings.TrimSpace(c.URL) == "" {
		return &ConfigurationError{
			Code:    CodeMissingConfiguration,
			Field:   "Repository.URL",
			Message: "neither VERCEL_URL nor URL is defined, which are mandatory for private repo mode",
		}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	c.URL = strings.TrimRight(c.URL, "/")
	return c
}

// Asset 是归一化后的 release 资产。Size 单位为 MB，保留一位小数。
type Asset struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	APIURL      string  `json:"api_url"`
	URL         string  `json:"url"`
	ContentType string  `json:"content_type"`
	Size        float64 `json:"size"`
}

// Snapshot 是对外提供的最新 release 视图。
type Snapshot struct {
	Version   string            `json:"version,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	PubDate   string            `json:"pub_date,omitempty"`
	Platforms map[string]Asset  `json:"platforms,omitempty"`
	Assets    []Asset           `json:"assets,omitempty"`
	Files     map[string]string `json:"files,omitempty"`
}

// IsEmpty reports whether the snapshot has never been populated.
func (s Snapshot) IsEmpty() bool {
	return s.Version == ""
}

// Platform 返回指定平台的资产。
func (s Snapshot) Platform(tag string) (Asset, bool) {
	asset, ok := s.Platforms[tag]
	return asset, ok
}

// AssetByName 按文件名查找资产。
func (s Snapshot) AssetByName(name string) (Asset, bool) {
	idx := slices.IndexFunc(s.Assets, func(a Asset) bool { return a.Name == name })
	if idx < 0 {
		return Asset{}, false
	}
	return s.Assets[idx], true
}

// File 返回缓存的辅助文件内容。
func (s Snapshot) File(name string) (string, bool) {
	content, ok := s.Files[name]
	return content, ok
}

func (s Snapshot) clone() Snapshot {
	s.Platforms = maps.Clone(s.Platforms)
	s.Assets = slices.Clone(s.Assets)
	s.Files = maps.Clone(s.Files)
	return s
}

// releaseRecord 对应 GitHub releases 列表中的一项，只保留用到的字段。
type releaseRecord struct {
	TagName     string        `json:"tag_name"`
	Draft       bool          `json:"draft"`
	Prerelease  bool          `json:"prerelease"`
	Body        string        `json:"body"`
	PublishedAt string        `json:"published_at"`
	Assets      []assetRecord `json:"assets"`
}

type assetRecord struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	URL                string `json:"url"`
	BrowserDownloadURL string `json:"browser_download_url"`
	ContentType        string `json:"content_type"`
	Size               int64  `json:"size"`
}

// decodeReleases 解析 releases 列表。body 不是数组时返回 ok=false；
// 无法解析为 release 或缺少 tag_name 的条目会被跳过。
func decodeReleases(body []byte) (releases []releaseRecord, ok bool, err error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}

	releases = make([]releaseRecord, 0, len(raw))
	for _, item := range raw {
		var rec releaseRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			continue
		}
		if rec.TagName == "" {
			continue
		}
		releases = append(releases, rec)
	}
	return releases, true, nil
}

func normalizeAsset(a assetRecord) Asset {
	return Asset{
		ID:          a.ID,
		Name:        a.Name,
		APIURL:      a.URL,
		URL:         a.BrowserDownloadURL,
		ContentType: a.ContentType,
		Size:        megabytes(a.Size),
	}
}

// megabytes converts a byte count to MB rounded to one decimal place.
func megabytes(bytes int64) float64 {
	return math.Round(float64(bytes)/1_000_000*10) / 10
}
