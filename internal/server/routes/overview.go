package routes

import (
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v3"
	"github.com/samber/lo"

	"github.com/release-hub/release-hub/internal/release"
)

type overviewPayload struct {
	Account    string          `json:"account"`
	Repository string          `json:"repository"`
	Version    string          `json:"version,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	PubDate    string          `json:"pub_date,omitempty"`
	Published  string          `json:"published,omitempty"`
	Platforms  []string        `json:"platforms"`
	Assets     []assetOverview `json:"assets"`
}

type assetOverview struct {
	Name        string  `json:"name"`
	ContentType string  `json:"content_type"`
	Size        float64 `json:"size"`
	HumanSize   string  `json:"human_size"`
	Platform    string  `json:"platform,omitempty"`
}

func (h *handlers) overview(c fiber.Ctx) error {
	snap, ok, err := h.snapshot(c)
	if !ok {
		return err
	}
	return c.JSON(buildOverview(h.deps.Config, snap, time.Now()))
}

func buildOverview(cfg release.Config, snap release.Snapshot, now time.Time) overviewPayload {
	byName := make(map[string]string, len(snap.Platforms))
	for tag, asset := range snap.Platforms {
		byName[asset.Name] = tag
	}

	platforms := lo.Keys(snap.Platforms)
	slices.Sort(platforms)

	payload := overviewPayload{
		Account:    cfg.Account,
		Repository: cfg.Repository,
		Version:    snap.Version,
		Notes:      snap.Notes,
		PubDate:    snap.PubDate,
		Platforms:  platforms,
		Assets: lo.Map(snap.Assets, func(a release.Asset, _ int) assetOverview {
			return assetOverview{
				Name:        a.Name,
				ContentType: a.ContentType,
				Size:        a.Size,
				HumanSize:   humanize.Bytes(uint64(a.Size * 1_000_000)),
				Platform:    byName[a.Name],
			}
		}),
	}
	if published, err := time.Parse(time.RFC3339, snap.PubDate); err == nil {
		payload.Published = humanize.RelTime(published, now, "ago", "from now")
	}
	return payload
}
