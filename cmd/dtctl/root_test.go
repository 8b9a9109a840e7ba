package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

func writeData(t *testing.T, w http.ResponseWriter, status int, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data}))
}

func execute(t *testing.T, srv *httptest.Server, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCompareCmd_NoWait(t *testing.T) {
	runID := uuid.New()
	var got models.CompareRunRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/compare/run", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeData(t, w, http.StatusAccepted, models.SubmittedRun{RunID: runID, Status: models.RunStatusPending})
	}))
	defer srv.Close()

	out, _, err := execute(t, srv, "compare",
		"--left", "orders", "--right", "orders",
		"--left-env", "dev", "--right-env", "prod",
		"-k", "id", "-c", "amount:total", "--sample-limit", "5",
		"--wait=false", "-o", "json")
	require.NoError(t, err)

	assert.Equal(t, []models.ColumnPair{{Left: "id", Right: "id"}}, got.JoinKeyPairs)
	assert.Equal(t, []models.ColumnPair{{Left: "amount", Right: "total"}}, got.CompareColumnPairs)
	require.NotNil(t, got.SampleLimit)
	assert.Equal(t, 5, *got.SampleLimit)
	assert.Equal(t, "prod", got.RightEnvSchema)

	var submitted models.SubmittedRun
	require.NoError(t, json.Unmarshal([]byte(out), &submitted))
	assert.Equal(t, runID, submitted.RunID)
}

func TestCompareCmd_WaitReportsFailedRun(t *testing.T) {
	runID := uuid.New()
	msg := "left: table not found"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/compare/run":
			writeData(t, w, http.StatusAccepted, models.SubmittedRun{RunID: runID, Status: models.RunStatusPending})
		case "/api/runs/" + runID.String():
			writeData(t, w, http.StatusOK, models.Run{ID: runID, Kind: models.RunKindComparison, Status: models.RunStatusError, ErrorMessage: &msg})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, stderr, err := execute(t, srv, "compare", "--left", "a", "--right", "b", "-k", "id", "--poll-interval", "5ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), runID.String())
	assert.Contains(t, stderr, "waiting")
	assert.Contains(t, out, msg)
}

func TestCompareCmd_BadColumnPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer srv.Close()

	_, _, err := execute(t, srv, "compare", "--left", "a", "--right", "b", "-k", ":id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column pair")
}

func TestRunsGetCmd_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"run not found"}`))
	}))
	defer srv.Close()

	_, _, err := execute(t, srv, "runs", "get", uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestRunsListCmd_Table(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "validation", r.URL.Query().Get("kind"))
		writeData(t, w, http.StatusOK, map[string]any{
			"runs": []models.Run{{
				ID:               uuid.New(),
				Kind:             models.RunKindValidation,
				Status:           models.RunStatusCompleted,
				LeftEnvironment:  "dev",
				RightEnvironment: "dev",
			}},
			"total": 1,
		})
	}))
	defer srv.Close()

	out, _, err := execute(t, srv, "runs", "list", "--kind", "validation")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "validation")
}

func TestRootCmd_RejectsUnknownOutput(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, _, err := execute(t, srv, "runs", "list", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
