package app

import (
	"strings"
	"testing"
	"time"

	"github.com/thushan/conduit/internal/core/domain"
)

func TestRowKey(t *testing.T) {
	withRemote := LifecycleEvent{Name: "plain", RemoteID: "127.0.0.1:5000"}
	if got := rowKey(withRemote); got != "plain/127.0.0.1:5000" {
		t.Fatalf("rowKey = %q, want %q", got, "plain/127.0.0.1:5000")
	}

	withoutRemote := LifecycleEvent{Name: "upstream"}
	if got := rowKey(withoutRemote); got != "upstream" {
		t.Fatalf("rowKey = %q, want %q", got, "upstream")
	}
}

func TestRenderDashboard_IncludesEveryRow(t *testing.T) {
	rows := map[string]dashboardRow{
		"plain/1.2.3.4": {
			name: "plain", direction: "listener", remoteID: "1.2.3.4",
			state: domain.Open, updated: time.Now(),
		},
		"upstream": {
			name: "upstream", direction: "dialer",
			state: domain.Closed, updated: time.Now(),
		},
	}

	out := renderDashboard(rows)
	for _, want := range []string{"plain", "upstream", "listener", "dialer"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered dashboard missing %q:\n%s", want, out)
		}
	}
}
