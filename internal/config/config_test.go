package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-research/pkg/errors"
)

type ConfigTestSuite struct {
	suite.Suite
	tempDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	tempDir, err := os.MkdirTemp("", "config-test")
	suite.Require().NoError(err)
	suite.tempDir = tempDir
}

func (suite *ConfigTestSuite) TearDownTest() {
	os.RemoveAll(suite.tempDir)
}

func (suite *ConfigTestSuite) writeConfig(content string) string {
	path := filepath.Join(suite.tempDir, "config.yaml")
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	return path
}

func (suite *ConfigTestSuite) TestDefaults() {
	settings, err := Load("")
	suite.Require().NoError(err)

	suite.Equal("data", settings.DataDir)
	suite.Equal("artifacts", settings.ArtifactsDir)
	suite.Equal([]string{"stooq", "yahoo"}, settings.ProviderPriority)
	suite.Equal(30*time.Second, settings.HTTPTimeout)
	suite.Equal(1, settings.Concurrency)
	suite.Equal(filepath.Join("data", "canonical", "ohlcv.parquet"), settings.CanonicalPath())
	suite.Equal(filepath.Join("data", "raw_prices"), settings.RawPricesDir())
	suite.Equal(filepath.Join("artifacts", "backtests"), settings.BacktestsDir())
}

func (suite *ConfigTestSuite) TestFileOverridesDefaults() {
	path := suite.writeConfig(`
data_dir: /srv/data
provider_priority: [yahoo, polygon]
polygon_api_key: secret
http_timeout: 5s
concurrency: 4
`)

	settings, err := Load(path)
	suite.Require().NoError(err)

	suite.Equal("/srv/data", settings.DataDir)
	suite.Equal([]string{"yahoo", "polygon"}, settings.ProviderPriority)
	suite.Equal("secret", settings.PolygonAPIKey)
	suite.Equal(5*time.Second, settings.HTTPTimeout)
	suite.Equal(4, settings.Concurrency)
}

func (suite *ConfigTestSuite) TestEnvironmentOverridesFile() {
	path := suite.writeConfig("data_dir: /srv/data\n")
	suite.T().Setenv("ALGO_DATA_DIR", "/env/data")
	suite.T().Setenv("ALGO_PROVIDER_PRIORITY", "binance,stooq")

	settings, err := Load(path)
	suite.Require().NoError(err)

	suite.Equal("/env/data", settings.DataDir)
	suite.Equal([]string{"binance", "stooq"}, settings.ProviderPriority)
}

func (suite *ConfigTestSuite) TestInvalidSettingsReportsEveryField() {
	path := suite.writeConfig(`
provider_priority: [stooq, nasdaq]
concurrency: 0
log_level: loud
`)

	settings, err := Load(path)
	suite.Nil(settings)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
	suite.Contains(err.Error(), "ProviderPriority[1]")
	suite.Contains(err.Error(), "Concurrency")
	suite.Contains(err.Error(), "LogLevel")
}

func (suite *ConfigTestSuite) TestMissingFile() {
	_, err := Load(filepath.Join(suite.tempDir, "missing.yaml"))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
