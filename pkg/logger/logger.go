package logger

import (
	"backflow/conf"
	"os"
	"strings"
	"sync"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.Logger
	slog *zap.SugaredLogger
	mu   sync.RWMutex
)

func init() {
	// 未初始化前使用开发模式输出到控制台，方便测试
	l, _ := zap.NewDevelopment()
	setLogger(l)
}

func setLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
	slog = l.Sugar()
}

// InitLogger 根据配置初始化全局日志，文件按大小切割
func InitLogger(cfg *conf.LogConfig, appName string) {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = "2006-01-02 15:04:05.000"
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeFormat)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	level := parseLevel(cfg.Level)

	var cores []zapcore.Core
	if cfg.FileName != "" {
		writer := &lumberjack.Logger{
			Filename:   cfg.FileName,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(writer), level))
	}
	if cfg.Console || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stdout), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("app", appName))
	setLogger(l)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Pair 构造一个结构化字段
func Pair(key string, value any) zap.Field {
	return zap.Any(key, value)
}

func Debug(msg string, fields ...zap.Field) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	mu.RLock()
	defer mu.RUnlock()
	log.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	mu.RLock()
	defer mu.RUnlock()
	log.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	mu.RLock()
	defer mu.RUnlock()
	log.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	mu.RLock()
	defer mu.RUnlock()
	log.Fatal(msg, fields...)
}

func Debugf(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	slog.Debugf(format, args...)
}

func Infof(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	slog.Infof(format, args...)
}

func Warnf(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	slog.Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	slog.Errorf(format, args...)
}

func Fatalf(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	slog.Fatalf(format, args...)
}

// Sync 刷新缓冲区，进程退出前调用
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = log.Sync()
}
