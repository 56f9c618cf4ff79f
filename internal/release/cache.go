package release

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/release-hub/release-hub/internal/logging"
	"github.com/release-hub/release-hub/internal/upstream"
)

const refreshKey = "refresh"

// Classifier 将资产文件名映射为平台标签，无法识别时返回 false。
type Classifier interface {
	Classify(name string) (string, bool)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(name string) (string, bool)

// Classify makes ClassifierFunc satisfy Classifier.
func (f ClassifierFunc) Classify(name string) (string, bool) {
	return f(name)
}

// Options 注入 Cache 的协作者。Fetcher 与 Classifier 必填。
type Options struct {
	Fetcher    upstream.Fetcher
	Classifier Classifier
	Retrier    *upstream.Retrier
	Logger     logrus.FieldLogger
	// Now 用于测试中替换时钟。
	Now func() time.Time
}

// Status 是缓存状态的只读视图，用于诊断接口。
type Status struct {
	Account     string        `json:"account"`
	Repository  string        `json:"repository"`
	Version     string        `json:"version,omitempty"`
	LastRefresh time.Time     `json:"last_refresh"`
	Interval    time.Duration `json:"interval"`
	Stale       bool          `json:"stale"`
	Assets      int           `json:"assets"`
	Platforms   []string      `json:"platforms"`
}

// Cache 保存最新 release 快照，过期后在读取时同步刷新。
type Cache struct {
	cfg        Config
	fetcher    upstream.Fetcher
	classifier Classifier
	retrier    *upstream.Retrier
	logger     logrus.FieldLogger
	now        func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	latest      Snapshot
	lastRefresh time.Time
}

// New 校验配置并返回空缓存，不会访问网络。配置缺失时返回 *ConfigurationError。
func New(cfg Config, opts Options) (*Cache, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if opts.Fetcher == nil {
		return nil, errors.New("release cache requires a fetcher")
	}
	if opts.Classifier == nil {
		return nil, errors.New("release cache requires a classifier")
	}
	if opts.Retrier == nil {
		opts.Retrier = upstream.NewRetrier(0, 0, nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Cache{
		cfg:        cfg.withDefaults(),
		fetcher:    opts.Fetcher,
		classifier: opts.Classifier,
		retrier:    opts.Retrier,
		logger:     opts.Logger,
		now:        opts.Now,
	}, nil
}

// Config returns the normalized configuration the cache was built with.
func (c *Cache) Config() Config {
	return c.cfg
}

// Snapshot 返回当前快照；数据过期（或从未刷新）时先同步刷新。
// 刷新失败时返回 *FetchError，已缓存的数据保持不变。
func (c *Cache) Snapshot(ctx context.Context) (Snapshot, error) {
	if c.isStale() {
		if err := c.refreshShared(ctx); err != nil {
			return Snapshot{}, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest.clone(), nil
}

// Status 返回诊断信息，不触发刷新。
func (c *Cache) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	platforms := lo.Keys(c.latest.Platforms)
	slices.Sort(platforms)

	return Status{
		Account:     c.cfg.Account,
		Repository:  c.cfg.Repository,
		Version:     c.latest.Version,
		LastRefresh: c.lastRefresh,
		Interval:    c.cfg.Interval,
		Stale:       c.staleLocked(),
		Assets:      len(c.latest.Assets),
		Platforms:   platforms,
	}
}

// Refresh 无条件拉取 releases 列表并在版本变化时重建快照。
// 列表为空、不是数组或没有符合条件的 release 时什么都不做。
func (c *Cache) Refresh(ctx context.Context) error {
	log := c.logger.WithFields(logging.ReleaseFields(c.cfg.Account, c.cfg.Repository, ""))
	listURL := c.releasesURL()
	log.Info("release_refresh_start")

	resp, err := c.retrier.Fetch(ctx, c.fetcher, listURL, upstream.AuthHeader(listAccept, c.cfg.Token))
	if err != nil {
		log.WithError(err).Warn("release_list_fetch_failed")
		return newFetchError(listURL, err)
	}

	releases, ok, err := decodeReleases(resp.Body)
	if err != nil {
		log.WithError(err).Warn("release_list_decode_failed")
		return &FetchError{URL: listURL, Status: resp.StatusCode, Err: fmt.Errorf("decoding releases: %w", err)}
	}
	if !ok || len(releases) == 0 {
		log.Info("release_list_empty")
		return nil
	}

	rec, found := lo.Find(releases, func(r releaseRecord) bool {
		return !r.Draft && r.Prerelease == c.cfg.Pre
	})
	if !found {
		log.WithField("pre", c.cfg.Pre).Info("release_not_found")
		return nil
	}
	if rec.Assets == nil {
		log.WithField("tag", rec.TagName).Info("release_without_assets")
		return nil
	}

	log = log.WithField("version", rec.TagName)
	if c.currentVersion() == rec.TagName {
		c.touch()
		log.Info("release_unchanged")
		return nil
	}

	log.Info("release_caching")
	next := c.buildSnapshot(ctx, rec, log)

	c.mu.Lock()
	c.latest = next
	c.lastRefresh = c.now()
	c.mu.Unlock()

	log.WithFields(logrus.Fields{
		"assets":    len(next.Assets),
		"platforms": len(next.Platforms),
		"published": humanizePubDate(next.PubDate, c.now()),
	}).Info("release_cached")
	return nil
}

// refreshShared 合并并发的过期读取，只有一个调用方真正访问上游。
// 刷新不随单个请求取消而中断，其他等待者仍需要结果。
func (c *Cache) refreshShared(ctx context.Context) error {
	_, err, _ := c.group.Do(refreshKey, func() (interface{}, error) {
		if !c.isStale() {
			return nil, nil
		}
		return nil, c.Refresh(context.WithoutCancel(ctx))
	})
	return err
}

func (c *Cache) buildSnapshot(ctx context.Context, rec releaseRecord, log logrus.FieldLogger) Snapshot {
	snap := Snapshot{
		Version:   rec.TagName,
		Notes:     rec.Body,
		PubDate:   rec.PublishedAt,
		Platforms: make(map[string]Asset),
		Assets:    make([]Asset, 0, len(rec.Assets)),
	}

	for _, a := range rec.Assets {
		if a.Name == "" {
			continue
		}
		if a.Name == ManifestFile {
			content, err := c.fetchManifest(ctx, a)
			if err != nil {
				log.WithError(err).WithField("asset", a.Name).Error("manifest_fetch_failed")
				continue
			}
			if snap.Files == nil {
				snap.Files = make(map[string]string)
			}
			snap.Files[a.Name] = content
			continue
		}

		asset := normalizeAsset(a)
		snap.Assets = append(snap.Assets, asset)
		if tag, ok := c.classifier.Classify(a.Name); ok {
			snap.Platforms[tag] = asset
		}
	}
	return snap
}

func (c *Cache) fetchManifest(ctx context.Context, a assetRecord) (string, error) {
	resp, err := c.retrier.Fetch(ctx, c.fetcher, a.URL, upstream.AuthHeader(manifestAccept, c.cfg.Token))
	if err != nil {
		return "", &ManifestFetchError{Name: a.Name, URL: a.URL, Err: err}
	}
	return string(resp.Body), nil
}

func (c *Cache) releasesURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/releases?per_page=100",
		c.cfg.APIBaseURL, url.PathEscape(c.cfg.Account), url.PathEscape(c.cfg.Repository))
}

func (c *Cache) currentVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest.Version
}

func (c *Cache) touch() {
	c.mu.Lock()
	c.lastRefresh = c.now()
	c.mu.Unlock()
}

func (c *Cache) isStale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staleLocked()
}

func (c *Cache) staleLocked() bool {
	if c.lastRefresh.IsZero() {
		return true
	}
	return c.now().Sub(c.lastRefresh) > c.cfg.Interval
}

func humanizePubDate(pubDate string, now time.Time) string {
	published, err := time.Parse(time.RFC3339, pubDate)
	if err != nil {
		return pubDate
	}
	return humanize.RelTime(published, now, "ago", "from now")
}
