package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/release-hub/release-hub/internal/logging"
	"github.com/release-hub/release-hub/internal/release"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	ListenPort int
}

const contextKeyRequestID = "_releasehub_request_id"

// NewApp builds a Fiber application with request-id, access-log and
// structured error handling. Routes are attached by the caller.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	return app, nil
}

// NewMisconfiguredApp 在仓库配置缺失时使用：所有请求都返回 400 和配置错误详情，
// 进程保持运行以便部署平台能看到具体原因。
func NewMisconfiguredApp(opts AppOptions, cfgErr *release.ConfigurationError) (*fiber.App, error) {
	if cfgErr == nil {
		return nil, errors.New("configuration error is required")
	}
	app, err := NewApp(opts)
	if err != nil {
		return nil, err
	}

	opts.Logger.WithFields(logrus.Fields{
		"action": "startup",
		"code":   cfgErr.Code,
		"field":  cfgErr.Field,
	}).Error(cfgErr.Message)

	app.Use(func(c fiber.Ctx) error {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    cfgErr.Code,
				"message": cfgErr.Message,
			},
		})
	})
	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并在请求结束后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusFromError(err)
		}
		fields := logging.RequestFields(reqID, c.Method(), c.Path(), status)
		fields["action"] = "access"
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		logger.WithFields(fields).Info("request_complete")
		return err
	}
}

func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := statusFromError(err)
		if status >= fiber.StatusInternalServerError {
			logger.WithError(err).WithFields(logging.RequestFields(RequestID(c), c.Method(), c.Path(), status)).
				Error("request_failed")
		}
		return c.Status(status).JSON(fiber.Map{"error": errorCode(status)})
	}
}

func statusFromError(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusBadRequest:
		return "bad_request"
	default:
		return "internal_error"
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
