package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/repository"
	"github.com/chatsounds/soundboard-server/internal/service"
)

func newAnalyticsRouter(sounds *mockSoundRepo, plays *mockPlayRepo) http.Handler {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC))
	svc := service.NewAnalyticsService(sounds, new(mockUserRepo), plays, clock)
	return NewAnalyticsHandler(svc).Routes()
}

func TestAnalyticsHandler_Daily(t *testing.T) {
	plays := new(mockPlayRepo)
	from := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	plays.On("CountByDay", mock.Anything, from, to, (*string)(nil)).
		Return([]repository.DayCount{{Day: "2024-03-09", Count: 4}}, nil)
	router := newAnalyticsRouter(new(mockSoundRepo), plays)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/daily?days=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats []model.DailyStat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, []model.DailyStat{
		{Date: "2024-03-08", Commands: 0},
		{Date: "2024-03-09", Commands: 4},
		{Date: "2024-03-10", Commands: 0},
	}, stats)
}

func TestAnalyticsHandler_DailyRejectsBadDays(t *testing.T) {
	router := newAnalyticsRouter(new(mockSoundRepo), new(mockPlayRepo))

	for _, q := range []string{"abc", "0", "366"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/daily?days="+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "days=%s", q)
	}
}

func TestAnalyticsHandler_SoundNotFound(t *testing.T) {
	sounds := new(mockSoundRepo)
	sounds.On("FindByID", mock.Anything, "missing").Return(nil, nil)
	router := newAnalyticsRouter(sounds, new(mockPlayRepo))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sounds/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyticsHandler_Reconcile(t *testing.T) {
	sounds := new(mockSoundRepo)
	sounds.On("PlayCountDrift", mock.Anything).Return([]model.PlayCountDrift{
		{SoundID: "s1", Command: "!airhorn", PlayCount: 5, LoggedPlays: 4},
	}, nil)
	router := newAnalyticsRouter(sounds, new(mockPlayRepo))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reconcile", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["consistent"])
	assert.Len(t, body["drift"], 1)
}
