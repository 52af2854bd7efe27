package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/pkg/logging"
)

func TestAuditJobEvent(t *testing.T) {
	tests := []struct {
		name    string
		ev      domain.JobEvent
		level   string
		msg     string
		attrKey string
		attrVal string
	}{
		{
			name:  "completed",
			ev:    domain.JobEvent{JobID: "j1", Type: domain.EventCompleted, ArtifactID: "a1"},
			level: "INFO", msg: "job completed", attrKey: "artifact_id", attrVal: "a1",
		},
		{
			name:  "failed",
			ev:    domain.JobEvent{JobID: "j2", Type: domain.EventFailed, Error: "store artifact: timeout"},
			level: "WARN", msg: "job failed", attrKey: "error", attrVal: "store artifact: timeout",
		},
		{name: "started is ignored", ev: domain.JobEvent{JobID: "j3", Type: domain.EventStarted}},
		{name: "progress is ignored", ev: domain.JobEvent{JobID: "j4", Type: domain.EventProgress, Frame: 3, Total: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handle := auditJobEvent(logging.New(&buf, "debug", "json"))

			require.NoError(t, handle(context.Background(), &tt.ev))

			if tt.msg == "" {
				assert.Zero(t, buf.Len(), "unexpected log output: %s", buf.String())
				return
			}
			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.level, line["level"])
			assert.Equal(t, tt.msg, line["msg"])
			assert.Equal(t, tt.ev.JobID, line["job_id"])
			assert.Equal(t, tt.attrVal, line[tt.attrKey])
		})
	}
}
