package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/release-hub/release-hub/internal/version"
)

//go:generate mockgen -destination=../release/mock_fetcher_test.go -package=release . Fetcher

// maxBodyBytes 限制单次读取的响应体大小，releases 列表和清单文件都远小于该值。
const maxBodyBytes = 32 << 20

// Response 是一次上游 GET 的结果，Body 已完整读入内存。
type Response struct {
	StatusCode int
	Body       []byte
}

// Fetcher 执行一次带请求头的 GET。非 2xx 状态不视为错误，由调用方判断。
type Fetcher interface {
	Fetch(ctx context.Context, url string, header http.Header) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string, header http.Header) (*Response, error)

// Fetch makes FetcherFunc satisfy Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string, header http.Header) (*Response, error) {
	return f(ctx, url, header)
}

// HTTPFetcher 基于共享 http.Client 实现 Fetcher。
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher 创建 HTTPFetcher；client 为空时使用默认配置。
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = NewClient(0)
	}
	return &HTTPFetcher{client: client}
}

// Fetch 发送 GET 请求并读取完整响应体。
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", version.UserAgent())
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// AuthHeader 构造访问上游所需的请求头，token 为空时不附带 Authorization。
func AuthHeader(accept, token string) http.Header {
	header := http.Header{}
	if accept != "" {
		header.Set("Accept", accept)
	}
	if token != "" {
		header.Set("Authorization", "token "+token)
	}
	return header
}
