package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestObservedLoggerLevels(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Debugw("debug", "light", 3)
	logger.Infof("info %d", 4)

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	test.That(t, logs.All()[0].Level, test.ShouldEqual, zapcore.DebugLevel)
	test.That(t, logs.All()[0].ContextMap()["light"], test.ShouldEqual, int64(3))
	test.That(t, logs.All()[1].Message, test.ShouldEqual, "info 4")

	logger.SetLevel(WARN)
	logger.Info("dropped")
	logger.Warn("kept")
	test.That(t, logs.Len(), test.ShouldEqual, 3)
	test.That(t, logs.FilterMessage("dropped").Len(), test.ShouldEqual, 0)
}

func TestSubloggerNaming(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("scan").Sublogger("alpha")
	sub.Infow("done", "detected", 38)

	test.That(t, logs.Len(), test.ShouldEqual, 1)
	test.That(t, logs.All()[0].LoggerName, test.ShouldEqual, "scan.alpha")
}

func TestUnpairedKey(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Infow("msg", "lonely")
	test.That(t, logs.All()[0].ContextMap()["lonely"], test.ShouldNotBeNil)
}

func TestLevelFromString(t *testing.T) {
	level, err := LevelFromString("WARNING")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)

	_, err = LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoggerRegistry(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	RegisterLogger("registry-test", logger)
	found, ok := LoggerNamed("registry-test")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, found, test.ShouldEqual, logger)
	test.That(t, GetRegisteredLoggerNames(), test.ShouldContain, "registry-test")

	test.That(t, UpdateLoggerLevel("registry-test", ERROR), test.ShouldBeNil)
	logger.Warn("dropped")
	logger.Error("kept")
	test.That(t, logs.Len(), test.ShouldEqual, 1)

	test.That(t, UpdateLoggerLevel("no-such-logger", DEBUG), test.ShouldNotBeNil)
	_, ok = LoggerNamed("no-such-logger")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRotatingFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledmap.log")
	logger, _ := NewObservedTestLogger(t)
	appender, closer := NewRotatingFileAppender(path, 1)
	logger.AddAppender(appender)
	logger.Infow("scan done", "view", "a", "detected", 38)
	test.That(t, logger.Sync(), test.ShouldBeNil)
	test.That(t, closer.Close(), test.ShouldBeNil)

	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "scan done")
	test.That(t, string(data), test.ShouldContainSubstring, "detected")
}
