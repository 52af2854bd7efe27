package natsadapter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/samirrijal/routecast/internal/core/domain"
)

func TestSubject(t *testing.T) {
	ev := &domain.JobEvent{JobID: "123", Type: domain.EventProgress}
	if got, want := Subject(ev), "render.job.123.progress"; got != want {
		t.Errorf("Subject = %q, want %q", got, want)
	}
	if got := JobSubject("123"); got != "render.job.123.>" {
		t.Errorf("JobSubject = %q", got)
	}
	if got := JobSubject(""); got != SubjectAll {
		t.Errorf("JobSubject(\"\") = %q, want %q", got, SubjectAll)
	}
}

func TestDecodeEvent(t *testing.T) {
	in := domain.JobEvent{JobID: "j", Type: domain.EventCompleted, Kind: domain.RenderVideo,
		Frame: 10, Total: 10, ArtifactID: "a", Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	data, _ := json.Marshal(in)
	ev, err := decodeEvent(data)
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if *ev != in {
		t.Errorf("got %+v, want %+v", *ev, in)
	}
}

func TestDecodeEvent_Rejects(t *testing.T) {
	for _, data := range []string{"{", `{"type":"started"}`} {
		if _, err := decodeEvent([]byte(data)); err == nil {
			t.Errorf("decodeEvent(%q) should fail", data)
		}
	}
}
