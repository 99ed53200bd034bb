package logs

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 定义日志级别常量（数值越大，级别越高）
const (
	LevelTrace   = iota // 0（最低，最详细）
	LevelDebug          // 1
	LevelVerbose        // 2
	LevelInfo           // 3
	LevelWarning        // 4
	LevelError          // 5（最高，最严重）
)

var logLevel atomic.Int32

// 全局 Logger 实例
var std *zap.SugaredLogger

// Logger 节点日志接口，HandlerManager / db / registry 都只依赖这个接口
type Logger interface {
	Trace(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Verbose(format string, v ...interface{})
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
	GetLogs() []LogLine
}

func init() {
	logLevel.Store(LevelInfo)
	std = newSugar(newConsoleCore(), 1)
}

// SetLevel 设置全局日志级别
func SetLevel(level int) {
	logLevel.Store(int32(level))
}

func enabled(level int) bool {
	return int(logLevel.Load()) <= level
}

// 底层统一用 zap 输出，级别过滤在本包完成
func newConsoleCore() zapcore.Core {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000")
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(os.Stdout)),
		zapcore.DebugLevel,
	)
}

func newSugar(core zapcore.Core, skip int) *zap.SugaredLogger {
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(skip)).Sugar()
}

// 包级别的日志方法
func Trace(format string, v ...interface{}) {
	if enabled(LevelTrace) {
		std.Debugf("[TRACE] "+format, v...)
	}
}

func Debug(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		std.Debugf(format, v...)
	}
}

func Verbose(format string, v ...interface{}) {
	if enabled(LevelVerbose) {
		std.Debugf("[VERBOSE] "+format, v...)
	}
}

func Info(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		std.Infof(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	if enabled(LevelWarning) {
		std.Warnf(format, v...)
	}
}

func Error(format string, v ...interface{}) {
	if enabled(LevelError) {
		std.Errorf(format, v...)
	}
}

// Sync 退出前刷出缓冲
func Sync() {
	_ = std.Sync()
}
