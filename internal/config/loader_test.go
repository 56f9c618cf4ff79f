package config

import "testing"

func TestLoadFailsWhenExplicitFileMissing(t *testing.T) {
	if _, err := Load(testConfigPath(t, "does-not-exist.toml")); err == nil {
		t.Fatalf("显式指定的配置文件不存在时应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
InitialBackoff = "boom"

[Repository]
Account = "octo-org"
Repository = "desktop-app"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadRejectsZeroAttempts(t *testing.T) {
	cfg := `
MaxAttempts = 0

[Repository]
Account = "octo-org"
Repository = "desktop-app"
`
	if _, err := Load(writeTempConfig(t, cfg)); err == nil {
		t.Fatalf("MaxAttempts = 0 应失败")
	}
}

func TestLoadDefaultsAttempts(t *testing.T) {
	cfg := `
[Repository]
Account = "octo-org"
Repository = "desktop-app"
`
	loaded, err := Load(writeTempConfig(t, cfg))
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if loaded.Global.MaxAttempts != 3 {
		t.Fatalf("默认尝试次数应为 3，得到 %d", loaded.Global.MaxAttempts)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("ACCOUNT", "env-org")
	t.Setenv("TOKEN", "secret")
	t.Setenv("PRE", "true")
	t.Setenv("PORT", "8080")

	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Repository.Account != "env-org" {
		t.Fatalf("环境变量应覆盖配置文件，得到 %s", cfg.Repository.Account)
	}
	if !cfg.Repository.Pre {
		t.Fatalf("PRE=true 应开启预发布通道")
	}
	if cfg.Repository.AuthMode() != "credentialed" {
		t.Fatalf("配置 Token 后应为 credentialed")
	}
	if cfg.Global.ListenPort != 8080 {
		t.Fatalf("PORT 应覆盖 ListenPort，得到 %d", cfg.Global.ListenPort)
	}
}

func TestLoadEnvOnlyWithoutDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ACCOUNT", "env-org")
	t.Setenv("REPOSITORY", "env-app")
	t.Setenv("VERCEL_URL", "release-hub.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置文件缺失时应仅使用环境变量: %v", err)
	}
	if cfg.Repository.Slug() != "env-org/env-app" {
		t.Fatalf("仓库坐标错误: %s", cfg.Repository.Slug())
	}
	if cfg.Repository.URL != "https://release-hub.example.com" {
		t.Fatalf("VERCEL_URL 应补全协议头，得到 %s", cfg.Repository.URL)
	}
	if cfg.Repository.Interval != 15 {
		t.Fatalf("Interval 默认值应为 15，得到 %d", cfg.Repository.Interval)
	}
	if cfg.Global.ListenPort != 3000 {
		t.Fatalf("ListenPort 默认值应为 3000，得到 %d", cfg.Global.ListenPort)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, ".env", "ACCOUNT=dotenv-org\nREPOSITORY=dotenv-app\n")
	t.Cleanup(func() {
		unsetEnv(t, "ACCOUNT")
		unsetEnv(t, "REPOSITORY")
	})

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Repository.Slug() != "dotenv-org/dotenv-app" {
		t.Fatalf(".env 中的变量应生效，得到 %s", cfg.Repository.Slug())
	}
}
