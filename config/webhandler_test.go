package config

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func getValidSession() SessionConfig {
	return SessionConfig{
		Pattern:        LuminanceMixture,
		Direction:      Right,
		CameraSpeed:    4,
		DisplayRate:    10,
		BufferDuration: 0,
		TrialDuration:  180 * time.Second,
		RecordDuration: time.Second,
		Participant:    "P01",
		TrialNumber:    1,
		OutputDir:      ".",
	}
}

func TestConfigHandler_Get(t *testing.T) {
	configFile := createConfigFile(t, getBaseConfig())
	handler := ConfigHandler(configFile)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got SessionConfig
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, Wobble, got.Pattern)
	assert.Equal(t, "P07", got.Participant)
}

func TestConfigHandler_MethodNotAllowed(t *testing.T) {
	configFile := createConfigFile(t, getBaseConfig())
	handler := ConfigHandler(configFile)

	req := httptest.NewRequest(http.MethodDelete, "/api/config", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestConfigHandler_SetValidation(t *testing.T) {
	configFile := createConfigFile(t, getBaseConfig())

	tests := []struct {
		name         string
		payload      SessionConfig
		wantStatus   int
		wantErrorMsg string
		shouldModify bool
	}{
		{
			name: "Valid Update",
			payload: func() SessionConfig {
				c := getValidSession()
				c.Participant = "P42"
				c.TrialNumber = 9
				return c
			}(),
			wantStatus:   http.StatusOK,
			shouldModify: true,
		},
		{
			name: "Unknown Pattern",
			payload: func() SessionConfig {
				c := getValidSession()
				c.Pattern = "spiral"
				return c
			}(),
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "unknown Session.Pattern",
		},
		{
			name: "Zero Display Rate",
			payload: func() SessionConfig {
				c := getValidSession()
				c.DisplayRate = 0
				return c
			}(),
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "DisplayRate must be positive",
		},
		{
			name: "Negative Trial",
			payload: func() SessionConfig {
				c := getValidSession()
				c.TrialDuration = -time.Second
				return c
			}(),
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "TrialDuration must be positive",
		},
	}

	handler := ConfigHandler(configFile)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := ReadConfig(configFile)
			assert.NoError(t, err)

			body, _ := json.Marshal(tt.payload)
			req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewBuffer(body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantErrorMsg != "" {
				assert.Contains(t, w.Body.String(), tt.wantErrorMsg)
			}

			after, err := ReadConfig(configFile)
			assert.NoError(t, err)
			if tt.shouldModify {
				assert.Equal(t, tt.payload, after.Session)
				// Sections that are not editable survive the rewrite.
				assert.Equal(t, before.Sensor, after.Sensor)
				assert.Equal(t, before.Logging, after.Logging)
			} else {
				assert.Equal(t, before.Session, after.Session, "File should not be updated with an invalid session")
			}
		})
	}
}

func TestConfigHandler_BadBody(t *testing.T) {
	configFile := createConfigFile(t, getBaseConfig())
	handler := ConfigHandler(configFile)

	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
