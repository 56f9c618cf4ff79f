package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/release-hub/release-hub/internal/config"
	"github.com/release-hub/release-hub/internal/logging"
	"github.com/release-hub/release-hub/internal/platform"
	"github.com/release-hub/release-hub/internal/release"
	"github.com/release-hub/release-hub/internal/server"
	"github.com/release-hub/release-hub/internal/server/routes"
	"github.com/release-hub/release-hub/internal/upstream"
	"github.com/release-hub/release-hub/internal/version"
)

// upstreamBurst 允许一次刷新（列表 + 清单）不被限流打断。
const upstreamBurst = 5

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	// 启动顺序为“配置 → 上游客户端 → release 缓存 → Fiber server”，
	// 缓存构造只校验配置，不访问网络。
	httpClient := upstream.NewClient(cfg.Global.UpstreamTimeout.DurationValue())
	cache, cacheErr := newReleaseCache(cfg, httpClient, logger)

	var cfgErr *release.ConfigurationError
	if cacheErr != nil && !errors.As(cacheErr, &cfgErr) {
		fmt.Fprintf(stdErr, "初始化 release 缓存失败: %v\n", cacheErr)
		return 1
	}

	if opts.checkOnly {
		if cfgErr != nil {
			fmt.Fprintf(stdErr, "配置校验失败: %v\n", cfgErr)
			return 1
		}
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["repository"] = cfg.Repository.Slug()
		fields["credentials"] = cfg.Repository.AuthMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	var app *fiber.App
	if cfgErr != nil {
		app, err = server.NewMisconfiguredApp(server.AppOptions{Logger: logger, ListenPort: cfg.Global.ListenPort}, cfgErr)
	} else {
		app, err = newReleaseApp(cfg, cache, httpClient, logger)
	}
	if err != nil {
		fmt.Fprintf(stdErr, "构建 HTTP 服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["repository"] = cfg.Repository.Slug()
	fields["listen_port"] = cfg.Global.ListenPort
	fields["credentials"] = cfg.Repository.AuthMode()
	fields["prerelease"] = cfg.Repository.Pre
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("release-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 RELEASE_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("RELEASE_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = config.DefaultPath
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// releaseConfig 将文件/环境变量配置映射为缓存使用的仓库配置。
func releaseConfig(cfg *config.Config) release.Config {
	repo := cfg.Repository
	return release.Config{
		Account:    repo.Account,
		Repository: repo.Repository,
		Token:      repo.Token,
		Pre:        repo.Pre,
		URL:        repo.URL,
		Interval:   repo.IntervalDuration(),
		APIBaseURL: repo.APIBaseURL,
	}
}

func newReleaseCache(cfg *config.Config, client *http.Client, logger *logrus.Logger) (*release.Cache, error) {
	limiter := upstream.NewLimiter(cfg.Global.RateLimit, upstreamBurst)
	retrier := upstream.NewRetrier(cfg.Global.MaxAttempts, cfg.Global.InitialBackoff.DurationValue(), limiter)

	return release.New(releaseConfig(cfg), release.Options{
		Fetcher:    upstream.NewHTTPFetcher(client),
		Classifier: platform.Classifier{},
		Retrier:    retrier,
		Logger:     logger,
	})
}

func newReleaseApp(cfg *config.Config, cache *release.Cache, client *http.Client, logger *logrus.Logger) (*fiber.App, error) {
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		return nil, err
	}

	relCfg := cache.Config()
	deps := routes.Deps{
		Cache:  cache,
		Config: relCfg,
		Logger: logger,
	}
	if relCfg.Private() {
		downloader, err := upstream.NewAssetDownloader(client, relCfg.APIBaseURL, relCfg.Account, relCfg.Repository, relCfg.Token)
		if err != nil {
			return nil, err
		}
		deps.Downloader = downloader
	}

	if err := routes.Register(app, deps); err != nil {
		return nil, err
	}
	return app, nil
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
