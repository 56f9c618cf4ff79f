package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供请求级字段，供路由访问日志复用。
func RequestFields(requestID, method, path string, status int) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
	}
}

// ReleaseFields 描述缓存刷新涉及的仓库与版本。
func ReleaseFields(account, repository, version string) logrus.Fields {
	fields := logrus.Fields{
		"account":    account,
		"repository": repository,
	}
	if version != "" {
		fields["version"] = version
	}
	return fields
}
