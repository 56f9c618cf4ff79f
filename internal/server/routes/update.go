package routes

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gofiber/fiber/v3"

	"github.com/release-hub/release-hub/internal/platform"
)

type updatePayload struct {
	Name    string `json:"name"`
	Notes   string `json:"notes"`
	PubDate string `json:"pub_date"`
	URL     string `json:"url"`
}

// update 实现客户端自动更新检查：版本一致或当前平台没有资产时返回 204。
func (h *handlers) update(c fiber.Ctx) error {
	tag, ok := platform.Resolve(c.Params("platform"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_platform"})
	}
	current, err := semver.NewVersion(c.Params("version"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_version"})
	}

	snap, ok, err := h.snapshot(c)
	if !ok {
		return err
	}
	asset, found := snap.Platform(platform.ForUpdate(tag))
	if !found || sameVersion(current, snap.Version) {
		return c.SendStatus(fiber.StatusNoContent)
	}

	downloadURL := asset.URL
	if h.deps.Config.Private() {
		downloadURL = fmt.Sprintf("%s/download/%s?update=true", h.deps.Config.URL, tag)
	}

	return c.JSON(updatePayload{
		Name:    snap.Version,
		Notes:   snap.Notes,
		PubDate: snap.PubDate,
		URL:     downloadURL,
	})
}

// sameVersion 比较客户端版本与最新 tag。tag 不是合法 semver 时退化为去掉 v 前缀的字符串比较。
func sameVersion(current *semver.Version, latestTag string) bool {
	latest, err := semver.NewVersion(latestTag)
	if err != nil {
		return strings.TrimPrefix(current.Original(), "v") == strings.TrimPrefix(latestTag, "v")
	}
	return current.Equal(latest)
}

func isVersion(name string) bool {
	_, err := semver.NewVersion(name)
	return err == nil
}
