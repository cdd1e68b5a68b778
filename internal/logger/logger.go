package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// 日志级别，数值越小输出越多。
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

var level atomic.Int32

func init() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	SetLevelFromEnv()
}

// SetLevelFromEnv 从 SMCBOT_LOG_LEVEL 读取级别（debug/info/warn/error），默认 info。
func SetLevelFromEnv() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SMCBOT_LOG_LEVEL"))) {
	case "debug":
		level.Store(LevelDebug)
	case "warn", "warning":
		level.Store(LevelWarn)
	case "error":
		level.Store(LevelError)
	default:
		level.Store(LevelInfo)
	}
}

// SetLevel 显式设置级别，测试里用。
func SetLevel(l int32) { level.Store(l) }

func logf(l int32, tag, format string, args ...any) {
	if l < level.Load() {
		return
	}
	log.Output(3, tag+" "+fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) { logf(LevelDebug, "DEBUG", format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, "INFO", format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, "WARN", format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, "ERROR", format, args...) }
