package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"
)

type cacheStatusPayload struct {
	Account         string   `json:"account"`
	Repository      string   `json:"repository"`
	Version         string   `json:"version,omitempty"`
	LastRefresh     string   `json:"last_refresh,omitempty"`
	IntervalSeconds int64    `json:"interval_seconds"`
	Stale           bool     `json:"stale"`
	Assets          int      `json:"assets"`
	Platforms       []string `json:"platforms"`
	Private         bool     `json:"private"`
	Prerelease      bool     `json:"prerelease"`
}

// cacheStatus 暴露 /-/cache 诊断接口，读取状态但不触发刷新。
func (h *handlers) cacheStatus(c fiber.Ctx) error {
	status := h.deps.Cache.Status()
	payload := cacheStatusPayload{
		Account:         status.Account,
		Repository:      status.Repository,
		Version:         status.Version,
		IntervalSeconds: int64(status.Interval / time.Second),
		Stale:           status.Stale,
		Assets:          status.Assets,
		Platforms:       status.Platforms,
		Private:         h.deps.Config.Private(),
		Prerelease:      h.deps.Config.Pre,
	}
	if !status.LastRefresh.IsZero() {
		payload.LastRefresh = status.LastRefresh.UTC().Format(time.RFC3339)
	}
	return c.JSON(payload)
}
