package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pterm/pterm"

	"github.com/thushan/conduit/internal/core/domain"
)

// dashboardRow is the last known state of one endpoint, keyed by its
// LifecycleEvent.Name/RemoteID pair.
type dashboardRow struct {
	name      string
	direction string
	remoteID  string
	state     domain.State
	err       error
	updated   time.Time
}

func rowKey(evt LifecycleEvent) string {
	if evt.RemoteID == "" {
		return evt.Name
	}
	return evt.Name + "/" + evt.RemoteID
}

// RunDashboard renders a live pterm table of every listener/dialer
// endpoint's lifecycle state (spec.md's seven-state machine), redrawn
// on every LifecycleEvent until ctx is cancelled. It follows the
// teacher's pterm.DefaultArea idiom used for other live views.
func (a *Application) RunDashboard(ctx context.Context) error {
	events, unsubscribe := a.Subscribe(ctx)
	defer unsubscribe()

	area, err := pterm.DefaultArea.WithFullscreen(false).Start()
	if err != nil {
		return err
	}
	defer func() { _ = area.Stop() }()

	rows := make(map[string]dashboardRow)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	render := func() {
		area.Update(renderDashboard(rows))
	}
	render()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			rows[rowKey(evt)] = dashboardRow{
				name:      evt.Name,
				direction: evt.Direction,
				remoteID:  evt.RemoteID,
				state:     evt.State,
				err:       evt.Err,
				updated:   evt.At,
			}
			render()
		case <-ticker.C:
			render()
		}
	}
}

func renderDashboard(rows map[string]dashboardRow) string {
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := [][]string{{"Name", "Direction", "Remote", "State", "Last Update", "Error"}}
	for _, k := range keys {
		r := rows[k]
		errStr := ""
		if r.err != nil {
			errStr = r.err.Error()
		}
		table = append(table, []string{
			r.name,
			r.direction,
			r.remoteID,
			stateText(r.state),
			r.updated.Format("15:04:05"),
			errStr,
		})
	}

	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(table).Srender()
	if err != nil {
		return fmt.Sprintf("conduit dashboard (render error: %v)", err)
	}
	return rendered
}

func stateText(s domain.State) string {
	switch {
	case s == domain.Open:
		return pterm.FgGreen.Sprint(s.String())
	case s == domain.Closed:
		return pterm.FgGray.Sprint(s.String())
	case s.IsOpening() || s.IsClosing():
		return pterm.FgYellow.Sprint(s.String())
	default:
		return s.String()
	}
}
