package logs

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLine 环形缓冲中的一条日志，供 /logs 接口返回
type LogLine struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// NodeLogger 带地址标签的节点日志，同时保留最近 N 条
type NodeLogger struct {
	address string
	sugar   *zap.SugaredLogger

	mu     sync.Mutex
	buf    []LogLine
	next   int
	filled bool
}

// NewNodeLogger 创建节点私有 Logger；bufferSize 为 0 时不保留历史
func NewNodeLogger(address string, bufferSize int) *NodeLogger {
	return newNodeLoggerWithCore(address, bufferSize, newConsoleCore())
}

func newNodeLoggerWithCore(address string, bufferSize int, core zapcore.Core) *NodeLogger {
	if bufferSize < 0 {
		bufferSize = 0
	}
	sugar := newSugar(core, 2)
	if address != "" {
		sugar = sugar.With("node", address)
	}
	return &NodeLogger{
		address: address,
		sugar:   sugar,
		buf:     make([]LogLine, bufferSize),
	}
}

func (l *NodeLogger) record(level, msg string) {
	if len(l.buf) == 0 {
		return
	}
	l.mu.Lock()
	l.buf[l.next] = LogLine{Time: time.Now(), Level: level, Message: msg}
	l.next++
	if l.next == len(l.buf) {
		l.next = 0
		l.filled = true
	}
	l.mu.Unlock()
}

func (l *NodeLogger) log(level int, name string, format string, v ...interface{}) {
	if !enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	l.record(name, msg)
	switch level {
	case LevelTrace, LevelDebug, LevelVerbose:
		l.sugar.Debug(msg)
	case LevelInfo:
		l.sugar.Info(msg)
	case LevelWarning:
		l.sugar.Warn(msg)
	default:
		l.sugar.Error(msg)
	}
}

func (l *NodeLogger) Trace(format string, v ...interface{}) {
	l.log(LevelTrace, "TRACE", format, v...)
}

func (l *NodeLogger) Debug(format string, v ...interface{}) {
	l.log(LevelDebug, "DEBUG", format, v...)
}

func (l *NodeLogger) Verbose(format string, v ...interface{}) {
	l.log(LevelVerbose, "VERBOSE", format, v...)
}

func (l *NodeLogger) Info(format string, v ...interface{}) {
	l.log(LevelInfo, "INFO", format, v...)
}

func (l *NodeLogger) Warn(format string, v ...interface{}) {
	l.log(LevelWarning, "WARN", format, v...)
}

func (l *NodeLogger) Error(format string, v ...interface{}) {
	l.log(LevelError, "ERROR", format, v...)
}

// GetLogs 按时间顺序返回缓冲中的日志
func (l *NodeLogger) GetLogs() []LogLine {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.filled {
		out := make([]LogLine, l.next)
		copy(out, l.buf[:l.next])
		return out
	}
	out := make([]LogLine, 0, len(l.buf))
	out = append(out, l.buf[l.next:]...)
	out = append(out, l.buf[:l.next]...)
	return out
}

func (l *NodeLogger) Address() string {
	return l.address
}

func (l *NodeLogger) Sync() error {
	return l.sugar.Sync()
}
