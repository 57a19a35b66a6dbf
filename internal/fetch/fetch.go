// 包 fetch 封装抓取详情页用的 HTTP 客户端（代理/单次超时/固定 UA）。
// 不做任何重试：失败的 URL 由后续运行自然重抓。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// UserAgent 为固定的客户端标识，不随请求变化。
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"

// maxBody 为单页读取上限，超出视为失败而不是截断后解析。
const maxBody = 8 << 20

// ErrTransport 覆盖网络错误、超时与非 2xx 状态。
var ErrTransport = errors.New("transport error")

// Client 为不带重试的页面抓取客户端。
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	Timeout    time.Duration
}

// New 创建客户端，支持 http/https 代理与单次请求超时。
func New(opts Options) (*Client, error) {
	var httpProxy, httpsProxy *url.URL
	var err error
	if opts.ProxyHTTP != "" {
		if httpProxy, err = url.Parse(opts.ProxyHTTP); err != nil {
			return nil, fmt.Errorf("parse http proxy: %w", err)
		}
	}
	if opts.ProxyHTTPS != "" {
		if httpsProxy, err = url.Parse(opts.ProxyHTTPS); err != nil {
			return nil, fmt.Errorf("parse https proxy: %w", err)
		}
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && httpsProxy != nil {
				return httpsProxy, nil
			}
			if req.URL.Scheme == "http" && httpProxy != nil {
				return httpProxy, nil
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &Client{http: &http.Client{Transport: transport}, timeout: opts.Timeout}, nil
}

// Get 发起一次 GET 请求，仅 2xx 视为成功；调用方负责关闭 Body。
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: new request: %v", ErrTransport, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept-Language", "ja,en;q=0.8")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: http status: %s", ErrTransport, resp.Status)
	}
	return resp, nil
}

// Fetch 在单次超时内取回页面 HTML。
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	if len(b) > maxBody {
		return "", fmt.Errorf("%w: body exceeds %d bytes", ErrTransport, maxBody)
	}
	return string(b), nil
}
