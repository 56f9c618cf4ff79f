package routes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/release-hub/release-hub/internal/logging"
	"github.com/release-hub/release-hub/internal/platform"
	"github.com/release-hub/release-hub/internal/release"
	"github.com/release-hub/release-hub/internal/server"
	"github.com/release-hub/release-hub/internal/upstream"
)

// ReleaseSource 是路由读取 release 数据的入口，由 *release.Cache 实现。
type ReleaseSource interface {
	Snapshot(ctx context.Context) (release.Snapshot, error)
	Status() release.Status
}

// Downloader 解析私有仓库资产，返回重定向地址或内容流之一。
type Downloader interface {
	Download(ctx context.Context, assetID int64) (io.ReadCloser, string, error)
}

// Deps 汇总路由依赖。私有仓库模式下 Downloader 必填。
type Deps struct {
	Cache      ReleaseSource
	Config     release.Config
	Downloader Downloader
	Logger     *logrus.Logger
}

type handlers struct {
	deps Deps
}

// Register 挂载所有 release 路由与 /-/cache 诊断接口。
func Register(app *fiber.App, deps Deps) error {
	if app == nil {
		return errors.New("app is required")
	}
	if deps.Cache == nil {
		return errors.New("release cache is required")
	}
	if deps.Logger == nil {
		return errors.New("logger is required")
	}
	if deps.Config.Private() && deps.Downloader == nil {
		return errors.New("downloader is required for private repositories")
	}

	h := &handlers{deps: deps}

	app.Get("/", h.overview)
	app.Get("/update/win/"+release.ManifestFile, h.manifest)
	app.Get("/update/win/:file", h.windowsFile)
	app.Get("/download", h.download)
	app.Get("/download/:platform", h.downloadPlatform)
	app.Get("/update/:platform/:version", h.update)
	app.Get("/-/cache", h.cacheStatus)
	return nil
}

// snapshot 读取快照。失败时已写出 502 响应，ok 为 false，调用方直接返回 err。
func (h *handlers) snapshot(c fiber.Ctx) (release.Snapshot, bool, error) {
	snap, err := h.deps.Cache.Snapshot(c.Context())
	if err == nil {
		return snap, true, nil
	}

	fields := logging.RequestFields(server.RequestID(c), c.Method(), c.Path(), fiber.StatusBadGateway)
	var fetchErr *release.FetchError
	if errors.As(err, &fetchErr) {
		fields["upstream"] = fetchErr.URL
		fields["upstream_status"] = fetchErr.Status
	}
	h.deps.Logger.WithError(err).WithFields(fields).Warn("release_unavailable")
	return release.Snapshot{}, false, c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream_unavailable"})
}

// serveAsset 公开仓库直接重定向到 GitHub；私有仓库通过 API 解析签名地址或转发内容。
func (h *handlers) serveAsset(c fiber.Ctx, asset release.Asset) error {
	if !h.deps.Config.Private() {
		return c.Redirect().Status(fiber.StatusFound).To(asset.URL)
	}

	body, redirectURL, err := h.deps.Downloader.Download(c.Context(), asset.ID)
	if err != nil {
		if errors.Is(err, upstream.ErrAssetNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "asset_not_found"})
		}
		fields := logging.RequestFields(server.RequestID(c), c.Method(), c.Path(), fiber.StatusBadGateway)
		fields["asset"] = asset.Name
		h.deps.Logger.WithError(err).WithFields(fields).Error("asset_download_failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream_unavailable"})
	}
	if redirectURL != "" {
		return c.Redirect().Status(fiber.StatusFound).To(redirectURL)
	}

	if asset.ContentType != "" {
		c.Set(fiber.HeaderContentType, asset.ContentType)
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", asset.Name))
	return c.SendStream(body)
}

func (h *handlers) download(c fiber.Ctx) error {
	tag, ok := platform.FromUserAgent(c.Get(fiber.HeaderUserAgent))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "platform_unknown"})
	}

	snap, ok, err := h.snapshot(c)
	if !ok {
		return err
	}
	asset, found := downloadAsset(snap, tag)
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "platform_unavailable"})
	}
	return h.serveAsset(c, asset)
}

// downloadPlatform 按平台下载。?update=true 来自自动更新回调，返回可安装的更新包。
func (h *handlers) downloadPlatform(c fiber.Ctx) error {
	tag, ok := platform.Resolve(c.Params("platform"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_platform"})
	}

	snap, ok, err := h.snapshot(c)
	if !ok {
		return err
	}
	var asset release.Asset
	var found bool
	if c.Query("update") == "true" {
		asset, found = snap.Platform(platform.ForUpdate(tag))
	} else {
		asset, found = downloadAsset(snap, tag)
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "platform_unavailable"})
	}
	return h.serveAsset(c, asset)
}

// downloadAsset 按 platform.ForDownload 的优先级选出手动下载的资产。
func downloadAsset(snap release.Snapshot, tag string) (release.Asset, bool) {
	for _, candidate := range platform.ForDownload(tag) {
		if asset, ok := snap.Platform(candidate); ok {
			return asset, true
		}
	}
	return release.Asset{}, false
}

func (h *handlers) manifest(c fiber.Ctx) error {
	snap, ok, err := h.snapshot(c)
	if !ok {
		return err
	}
	content, found := snap.File(release.ManifestFile)
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file_not_found"})
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.SendString(content)
}

// windowsFile 按文件名返回资产。名字本身是版本号且没有同名资产时，
// 交给 /update/:platform/:version 处理。
func (h *handlers) windowsFile(c fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("file"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_file"})
	}

	snap, ok, err := h.snapshot(c)
	if !ok {
		return err
	}
	asset, found := snap.AssetByName(name)
	if !found {
		if isVersion(name) {
			return c.Next()
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file_not_found"})
	}
	return h.serveAsset(c, asset)
}
