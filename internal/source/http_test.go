package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const hospitalizationsJSON = `[
  {
    "id": 7,
    "admissionDate": "2025-01-01T08:00:00",
    "dischargeDate": null,
    "roomNumber": "204",
    "admissionReason": "Pneumonia",
    "status": "active",
    "userId": 42,
    "attendingDoctorId": 3,
    "vitalSignsRecords": [
      {
        "id": 1,
        "recordDate": "2025-01-02T10:00:00",
        "temperature": 40.0,
        "bloodPressure": "120/80",
        "heartRate": 160,
        "respiratoryRate": 16,
        "oxygenSaturation": 98.0,
        "notes": null,
        "recordedBy": "nurse-1"
      }
    ]
  },
  {
    "id": 8,
    "admissionDate": "2025-01-01T09:00:00",
    "roomNumber": "",
    "status": "pending",
    "userId": 43,
    "vitalSignsRecords": []
  }
]`

func newTestHTTPSource(url, token string) *HTTPSource {
	return NewHTTPSource(HTTPConfig{
		BaseURL:       url,
		Token:         token,
		Timeout:       2 * time.Second,
		RetryCount:    2,
		RetryWaitTime: time.Millisecond,
	}, zap.NewNop())
}

func TestHTTPSource_FetchAll(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/hospitalizations", r.URL.Path)
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(hospitalizationsJSON))
	}))
	defer server.Close()

	src := newTestHTTPSource(server.URL, "token-123")
	hs, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, hs, 2)

	assert.Equal(t, "Bearer token-123", auth)

	h := hs[0]
	assert.Equal(t, int64(7), h.ID)
	assert.Equal(t, int64(42), h.PatientID)
	assert.Equal(t, "204", h.RoomNumber)
	assert.Equal(t, int64(3), h.AttendingDoctorID)
	assert.True(t, h.DischargeDate.IsZero())
	require.Len(t, h.VitalSigns, 1)

	vs := h.VitalSigns[0]
	assert.Equal(t, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), vs.RecordDate.Time)
	require.NotNil(t, vs.Temperature)
	assert.Equal(t, 40.0, *vs.Temperature)
	require.NotNil(t, vs.HeartRate)
	assert.Equal(t, 160, *vs.HeartRate)
	assert.Equal(t, "120/80", vs.BloodPressure)

	assert.Empty(t, hs[1].VitalSigns)
}

func TestHTTPSource_NoTokenNoAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	hs, err := newTestHTTPSource(server.URL, "").FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hs)
}

func TestHTTPSource_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(hospitalizationsJSON))
	}))
	defer server.Close()

	hs, err := newTestHTTPSource(server.URL, "").FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, hs, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPSource_UnexpectedStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"unauthorized", http.StatusUnauthorized},
		{"not found", http.StatusNotFound},
		{"server error after retries", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTestHTTPSource(server.URL, "").FetchAll(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnexpectedStatus))
		})
	}
}

func TestHTTPSource_InvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"}`))
	}))
	defer server.Close()

	_, err := newTestHTTPSource(server.URL, "").FetchAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestHTTPSource_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestHTTPSource(server.URL, "").FetchAll(ctx)
	assert.Error(t, err)
}

func TestHTTPSource_MalformedRecordDateKeepsBatch(t *testing.T) {
	body := `[
	  {"id": 7, "userId": 42, "roomNumber": "204",
	   "vitalSignsRecords": [
	     {"recordDate": "2025-01-02T10:00:00", "temperature": 40.0},
	     {"recordDate": "02/01/2025 10:00", "heartRate": 170}
	   ]},
	  {"id": 8, "userId": 43, "admissionDate": 20250101, "vitalSignsRecords": []}
	]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer server.Close()

	src := newTestHTTPSource(server.URL, "")
	hs, err := src.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, hs, 2)
	require.Len(t, hs[0].VitalSigns, 2)

	assert.Equal(t, "2025-01-02T10:00:00", hs[0].VitalSigns[0].RecordDate.String())
	assert.True(t, hs[0].VitalSigns[1].RecordDate.IsZero())
	assert.True(t, hs[0].VitalSigns[1].RecordDate.Malformed())
	assert.True(t, hs[1].AdmissionDate.Malformed())
	assert.Equal(t, 2, countMalformedTimes(hs))
}
