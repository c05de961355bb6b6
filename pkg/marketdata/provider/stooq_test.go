package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-research/internal/types"
	"github.com/rxtech-lab/argo-research/pkg/errors"
)

type StooqClientTestSuite struct {
	suite.Suite
	server  *httptest.Server
	handler http.HandlerFunc
	query   string
}

func TestStooqClientSuite(t *testing.T) {
	suite.Run(t, new(StooqClientTestSuite))
}

func (suite *StooqClientTestSuite) SetupTest() {
	suite.handler = nil
	suite.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.query = r.URL.RawQuery
		suite.handler(w, r)
	}))
}

func (suite *StooqClientTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *StooqClientTestSuite) client() *StooqClient {
	client, err := NewStooqClient(StooqConfig{HTTPConfig: HTTPConfig{BaseURL: suite.server.URL, Timeout: time.Second}})
	suite.Require().NoError(err)

	return client
}

func (suite *StooqClientTestSuite) respond(status int, body string) {
	suite.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (suite *StooqClientTestSuite) TestFetch() {
	suite.respond(http.StatusOK, "Date,Open,High,Low,Close,Volume\n"+
		"2024-01-03,10,11,9,10.5,1000\n"+
		"2024-01-02,9,10,8,9.5,\n"+
		"2024-01-04,10,11,9,,1000\n"+
		"garbage,1,1,1,1,1\n")

	series, err := suite.client().Fetch(context.Background(), "spy.us")
	suite.Require().NoError(err)

	suite.Contains(suite.query, "s=spy.us")
	suite.Contains(suite.query, "i=d")
	suite.Equal(types.OHLCVFields, series.Fields)
	suite.Equal([]time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}, series.Dates())
	suite.Equal(9.5, series.Bars[0].Close)
	_, hasVolume := series.Bars[0].Value(types.FieldVolume)
	suite.False(hasVolume)
}

func (suite *StooqClientTestSuite) TestFetchWithoutVolumeColumn() {
	suite.respond(http.StatusOK, "Date,Open,High,Low,Close\n2024-01-02,1,2,0.5,1.5\n")

	_, err := suite.client().Fetch(context.Background(), "^spx")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
	suite.Contains(err.Error(), "volume")
}

func (suite *StooqClientTestSuite) TestFetchWithoutOpenAndLowColumns() {
	suite.respond(http.StatusOK, "Date,High,Close,Volume\n2024-01-02,2,1.5,100\n")

	_, err := suite.client().Fetch(context.Background(), "spy.us")
	suite.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
	suite.Contains(err.Error(), "open, low")
}

func (suite *StooqClientTestSuite) TestFetchNoData() {
	suite.respond(http.StatusOK, "No data")

	_, err := suite.client().Fetch(context.Background(), "nope.us")
	suite.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
}

func (suite *StooqClientTestSuite) TestFetchOnlyRowsWithoutClose() {
	suite.respond(http.StatusOK, "Date,Open,High,Low,Close,Volume\n2024-01-02,1,1,1,,1\n")

	_, err := suite.client().Fetch(context.Background(), "spy.us")
	suite.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
}

func (suite *StooqClientTestSuite) TestFetchServerError() {
	suite.respond(http.StatusBadGateway, "")

	_, err := suite.client().Fetch(context.Background(), "spy.us")
	suite.True(errors.HasCode(err, errors.ErrCodeTransportError))
}

func (suite *StooqClientTestSuite) TestFetchConnectionRefused() {
	client := suite.client()
	suite.server.Close()

	_, err := client.Fetch(context.Background(), "spy.us")
	suite.True(errors.HasCode(err, errors.ErrCodeTransportError))
}

func (suite *StooqClientTestSuite) TestFetchTimeout() {
	suite.handler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}

	client, err := NewStooqClient(StooqConfig{HTTPConfig: HTTPConfig{BaseURL: suite.server.URL, Timeout: 50 * time.Millisecond}})
	suite.Require().NoError(err)

	_, err = client.Fetch(context.Background(), "spy.us")
	suite.True(errors.HasCode(err, errors.ErrCodeTransportError))
}

func (suite *StooqClientTestSuite) TestInvalidConfig() {
	_, err := NewStooqClient(StooqConfig{HTTPConfig: HTTPConfig{BaseURL: "", Timeout: 0}})
	suite.Error(err)
}
