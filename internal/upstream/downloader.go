package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v80/github"
)

// ErrAssetNotFound 表示上游不存在该资产（或 token 无权访问）。
var ErrAssetNotFound = errors.New("release asset not found")

// AssetDownloader 通过 GitHub API 解析私有仓库的 release 资产。
// GitHub 对资产下载返回 302 到带签名的临时地址，调用方只需把客户端重定向过去；
// 当上游直接返回内容时则得到一个需要调用方关闭的 body。
type AssetDownloader struct {
	client *github.Client
	owner  string
	repo   string
}

// NewAssetDownloader 创建下载器。apiBaseURL 为空时使用 api.github.com。
func NewAssetDownloader(httpClient *http.Client, apiBaseURL, owner, repo, token string) (*AssetDownloader, error) {
	if owner == "" || repo == "" {
		return nil, errors.New("owner and repository are required")
	}

	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if apiBaseURL != "" {
		base, err := url.Parse(strings.TrimRight(apiBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid api base url: %w", err)
		}
		client.BaseURL = base
	}

	return &AssetDownloader{client: client, owner: owner, repo: repo}, nil
}

// Download 返回资产的重定向地址或内容流，二者恰有其一。
func (d *AssetDownloader) Download(ctx context.Context, assetID int64) (io.ReadCloser, string, error) {
	rc, redirectURL, err := d.client.Repositories.DownloadReleaseAsset(ctx, d.owner, d.repo, assetID, nil)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return nil, "", fmt.Errorf("%w: %d", ErrAssetNotFound, assetID)
		}
		return nil, "", fmt.Errorf("downloading asset %d: %w", assetID, err)
	}
	return rc, redirectURL, nil
}
