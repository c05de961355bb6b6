package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger("")
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
}

func (suite *LoggerTestSuite) TestNewLoggerWithLevel() {
	logger, err := NewLogger("debug")
	suite.NoError(err)
	suite.True(logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLogger("warn")
	suite.NoError(err)
	suite.False(logger.Core().Enabled(zap.InfoLevel))
}

func (suite *LoggerTestSuite) TestNewLoggerInvalidLevel() {
	logger, err := NewLogger("loud")
	suite.Error(err)
	suite.Nil(logger)
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}

	// Sync should not panic and should return nil for a nil inner logger
	err := logger.Sync()
	suite.NoError(err)
}

func (suite *LoggerTestSuite) TestOrNop() {
	suite.NotNil(OrNop(nil).Logger)
	suite.NotNil(OrNop(&Logger{Logger: nil}).Logger)

	l := NewNopLogger()
	suite.Same(l, OrNop(l))
}

func (suite *LoggerTestSuite) TestLoggerWithFields() {
	logger := NewNopLogger()

	// Should not panic
	logger.With(zap.String("instrument", "SPY")).Info("test message with fields")
}
