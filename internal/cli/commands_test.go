package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lotledger/internal/config"
	"github.com/roach88/lotledger/internal/ledger"
	"github.com/roach88/lotledger/internal/sensor"
	"github.com/roach88/lotledger/internal/testutil"
)

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func TestSeed(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("seed")
	assert.Equal(t, "Seeded lot_72\nSeeded allen_fieldhouse\nSeeded gsp\nSeeding complete\n", out)

	out = env.mustRun("status", "--lot=gsp")
	assert.Equal(t, "gsp: count_now=0 last_updated=2025-09-06T17:00:03Z\n", out)
}

func TestSeed_ZeroesCounts(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")
	env.mustRun("recordEntry", "--lot=gsp")
	assert.Contains(t, env.mustRun("status", "--lot=gsp"), "count_now=1")

	env.mustRun("seed")
	assert.Contains(t, env.mustRun("status", "--lot=gsp"), "count_now=0")
}

func TestSeed_KeepCounts(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")
	env.mustRun("setCount", "--lot=lot_72", "--count=40")

	env.mustRun("seed", "--keep-counts")
	assert.Contains(t, env.mustRun("status", "--lot=lot_72"), "count_now=40")

	env.mustRun("seed")
	assert.Contains(t, env.mustRun("status", "--lot=lot_72"), "count_now=0")
}

func TestSeed_Catalog(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "lots.cue")
	src := `lots: {
	lot_90: {
		name:      "Lot 90"
		capacity:  300
		latitude:  38.94
		longitude: -95.25
	}
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))

	out := env.mustRun("seed", "--catalog="+path)
	assert.Equal(t, "Seeded lot_90\nSeeding complete\n", out)

	out = env.mustRun("list")
	assert.Contains(t, out, "lot_90")
	assert.NotContains(t, out, "lot_72")
}

func TestSeed_BadCatalog(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "lots.cue")
	require.NoError(t, os.WriteFile(path, []byte(`lots: x: {name: "X", capacity: -1, latitude: 0, longitude: 0}`), 0o600))

	_, _, err := env.run("seed", "--catalog="+path)
	require.Error(t, err)
	assert.NoFileExists(t, env.dbPath, "a bad catalog must fail before the store is opened")
}

func TestList(t *testing.T) {
	env := newTestEnv(t)

	assert.Contains(t, env.mustRun("list"), "No lots")

	env.mustRun("seed")
	out := env.mustRun("list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"ID", "NAME", "CAPACITY", "LATITUDE", "LONGITUDE", "DESCRIPTION"}, strings.Fields(lines[0]))
	assert.True(t, strings.HasPrefix(lines[1], "allen_fieldhouse "))
	assert.Contains(t, lines[1], "Allen Fieldhouse Lot")
	assert.Contains(t, lines[1], "450")
	assert.Contains(t, lines[1], "38.9558")
	assert.Contains(t, lines[1], "-95.2474")
	assert.True(t, strings.HasPrefix(lines[3], "lot_72 "))
	assert.Contains(t, lines[3], "Behind Eaton Hall")
}

func TestList_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	resp := decodeResponse(t, env.mustRun("--format=json", "list"))
	assert.Equal(t, "ok", resp.Status)
	lots, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, lots, 3)
	first := lots[0].(map[string]any)
	assert.Equal(t, "allen_fieldhouse", first["id"])
	assert.Equal(t, float64(450), first["capacity"])
}

func TestRecord_Lot72Scenario(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	for i := 1; i <= 3; i++ {
		out := env.mustRun("recordEntry", "--lot=lot_72")
		assert.Equal(t, fmt.Sprintf("Recorded ENTRY for lot_72: %d/120\n", i), out)
	}
	assert.Contains(t, env.mustRun("status", "--lot=lot_72"), "count_now=3")

	out := env.mustRun("recordExit", "--lot=lot_72")
	assert.Equal(t, "Recorded EXIT for lot_72: 2/120\n", out)

	out = env.mustRun("events", "--lot=lot_72")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, []string{"TIMESTAMP", "DIRECTION", "SOURCE", "CONFIDENCE", "ID"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"2025-09-06T17:00:04Z", "ENTRY", "manual", "1.00", "ev-0001"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2025-09-06T17:00:07Z", "EXIT", "manual", "1.00", "ev-0004"}, strings.Fields(lines[4]))

	out = env.mustRun("events", "--lot=lot_72", "--limit=1")
	assert.Contains(t, out, "ev-0004")
	assert.NotContains(t, out, "ev-0003")
}

func TestRecord_ClampsAtBounds(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	assert.Equal(t, "Recorded EXIT for gsp: 0/180\n", env.mustRun("recordExit", "--lot=gsp"))

	env.mustRun("updateLot", "--lot=gsp", "--field=capacity", "--value=2")
	env.mustRun("recordEntry", "--lot=gsp")
	env.mustRun("recordEntry", "--lot=gsp")
	assert.Equal(t, "Recorded ENTRY for gsp: 2/2\n", env.mustRun("recordEntry", "--lot=gsp"))

	out := env.mustRun("events", "--lot=gsp", "--limit=0")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 5, "header plus one event per call")
}

func TestRecord_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	resp := decodeResponse(t, env.mustRun("--format=json", "recordEntry", "--lot=lot_72"))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "lot_72", data["lot_id"])
	assert.Equal(t, "ENTRY", data["direction"])
	assert.Equal(t, float64(1), data["count_now"])
	assert.Equal(t, float64(120), data["capacity"])
	assert.Equal(t, "ev-0001", data["event_id"])
}

func TestRecord_UnknownLot(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	_, _, err := env.run("recordEntry", "--lot=nowhere")
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
	assert.Contains(t, err.Error(), "lot nowhere not found")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRecord_MissingFlag(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run("recordEntry")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "lot" not set`)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.NoFileExists(t, env.dbPath)
}

func TestSetCount(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	assert.Equal(t, "Set lot_72 count_now = 130\n", env.mustRun("setCount", "--lot=lot_72", "--count=130"))
	assert.Contains(t, env.mustRun("status", "--lot=lot_72"), "count_now=130", "overrides are not clamped")

	assert.Contains(t, env.mustRun("events", "--lot=lot_72"), "No events for lot_72")
}

func TestSetCount_Negative(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run("setCount", "--lot=lot_72", "--count=-1")
	require.Error(t, err)
	assert.True(t, ledger.IsInvalidArgument(err))
	assert.NoFileExists(t, env.dbPath)
}

func TestSetCount_NotANumber(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run("setCount", "--lot=lot_72", "--count=many")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid argument")
}

func TestStatus_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	resp := decodeResponse(t, env.mustRun("--format=json", "status", "--lot=lot_72"))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(0), data["count_now"])
	assert.Equal(t, "2025-09-06T17:00:01Z", data["last_updated"])
}

func TestStatus_NotFoundJSON(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	out, _, err := env.run("--format=json", "status", "--lot=nowhere")
	require.Error(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestUpdateLot(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	assert.Equal(t, "Updated lot meta for lot_72\n", env.mustRun("updateLot", "--lot=lot_72", "--field=description", "--value=North of Eaton"))
	assert.Contains(t, env.mustRun("list"), "North of Eaton")

	resp := decodeResponse(t, env.mustRun("--format=json", "updateLot", "--lot=lot_72", "--field=capacity", "--value=150"))
	assert.Equal(t, float64(150), resp.Data.(map[string]any)["value"])
	assert.Equal(t, "Recorded ENTRY for lot_72: 1/150\n", env.mustRun("recordEntry", "--lot=lot_72"))

	resp = decodeResponse(t, env.mustRun("--format=json", "updateLot", "--lot=lot_72", "--field=zone", "--value=12", "--string"))
	assert.Equal(t, "12", resp.Data.(map[string]any)["value"])
}

func TestUpdateLot_NonNumericCapacity(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	_, stderr, err := env.run("updateLot", "--lot=lot_72", "--field=capacity", "--value=unknown")
	require.NoError(t, err)
	assert.Contains(t, stderr, "capacity is not a number")

	assert.Equal(t, "Recorded ENTRY for lot_72: 1/?\n", env.mustRun("recordEntry", "--lot=lot_72"))
	assert.Contains(t, env.mustRun("list"), "capacity=unknown")
}

func TestUpdateLot_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	_, _, err := env.run("updateLot", "--lot=nowhere", "--field=name", "--value=X")
	assert.True(t, ledger.IsNotFound(err))

	_, _, err = env.run("updateLot", "--lot=lot_72", "--field= ", "--value=X")
	assert.True(t, ledger.IsInvalidArgument(err))
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"120", 120},
		{"-3", -3},
		{"1.5", 1.5},
		{"true", true},
		{"false", false},
		{"Lot 72", "Lot 72"},
		{"", ""},
		{"null", "null"},
		{"[1, 2]", "[1, 2]"},
		{"key: value", "key: value"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseScalar(tt.in), "parseScalar(%q)", tt.in)
	}
}

func TestDeleteLot_GSPScenario(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")
	for i := 0; i < 5; i++ {
		env.mustRun("recordEntry", "--lot=gsp")
	}

	assert.Equal(t, "Deleted lot and its events: gsp (5 events)\n", env.mustRun("deleteLot", "--lot=gsp"))

	_, _, err := env.run("status", "--lot=gsp")
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
	assert.NotContains(t, env.mustRun("list"), "gsp")

	// Deleting again is a no-op.
	assert.Equal(t, "Deleted lot and its events: gsp (0 events)\n", env.mustRun("deleteLot", "--lot=gsp"))
}

func TestDeleteLot_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")
	env.mustRun("recordEntry", "--lot=lot_72")

	resp := decodeResponse(t, env.mustRun("--format=json", "deleteLot", "--lot=lot_72"))
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["lot_existed"])
	assert.Equal(t, float64(1), data["events_deleted"])
	assert.Equal(t, true, data["status_deleted"])
	assert.Equal(t, true, data["transactional"])
}

func TestAudit(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")
	for i := 0; i < 3; i++ {
		env.mustRun("recordEntry", "--lot=lot_72")
	}
	env.mustRun("recordExit", "--lot=lot_72")

	out := env.mustRun("audit", "--lot=lot_72")
	assert.Equal(t, "lot_72: 4 events (3 entries, 1 exits), derived 2, count_now 2, drift +0\n", out)

	env.mustRun("setCount", "--lot=lot_72", "--count=10")
	out = env.mustRun("audit", "--lot=lot_72")
	assert.Equal(t, "lot_72: 4 events (3 entries, 1 exits), derived 2, count_now 10, drift +8\n", out)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")
	env.mustRun("updateLot", "--lot=lot_72", "--field=capacity", "--value=4")
	for i := 0; i < 3; i++ {
		env.mustRun("recordEntry", "--lot=lot_72")
	}

	// Events at 17:00 UTC fall in the 12:00 bucket in America/Chicago.
	out := env.mustRun("stats", "--lot=lot_72", "--width=44")
	assert.Contains(t, out, "Popular times for lot_72 (capacity 4, 3 samples)\n")
	assert.Contains(t, out, "12:00 |##########          |  50.00% medium\n")
	assert.Contains(t, out, "peak 12:00 at 50.00% (medium, yellow)\n")

	resp := decodeResponse(t, env.mustRun("--format=json", "stats", "--lot=lot_72"))
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(12), data["peak_hour"])
	assert.Equal(t, "medium", data["peak_band"])
}

func TestStats_UnboundedLot(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")
	env.mustRun("updateLot", "--lot=lot_72", "--field=capacity", "--value=none")

	_, _, err := env.run("stats", "--lot=lot_72")
	require.Error(t, err)
	assert.True(t, ledger.IsInvalidArgument(err))
}

func TestCalendar_Golden(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"calendar_lot_72", []string{"calendar", "--lot=lot_72"}},
		{"calendar_fieldhouse_november", []string{"calendar", "--lot=Allen Fieldhouse Lot", "--from=2025-11-01", "--to=2025-11-30"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			out := env.mustRun(tt.args...)
			testutil.AssertGolden(t, tt.name, []byte(out))
			assert.NoFileExists(t, env.dbPath, "calendar does not need the store")
		})
	}
}

func TestCalendar_NoMatch(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, "No campus events match.\n", env.mustRun("calendar", "--lot=gsp"))
}

func TestCalendar_BadDates(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run("calendar", "--from=11/01/2025")
	assert.ErrorContains(t, err, "invalid date")

	_, _, err = env.run("calendar", "--from=2025-12-01", "--to=2025-11-01")
	assert.ErrorContains(t, err, "is before --from")
}

func TestCalendar_ICS(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "parking.ics")

	out := env.mustRun("calendar", "--lot=allen_fieldhouse", "--ics="+path)
	assert.Equal(t, fmt.Sprintf("Wrote 4 event(s) to %s\n", path), out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	ics := string(data)
	assert.True(t, strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\n"))
	assert.Equal(t, 4, strings.Count(ics, "BEGIN:VEVENT"))
	assert.Contains(t, ics, "X-WR-CALNAME:Allen Fieldhouse Lot events\r\n")
	assert.Contains(t, ics, "UID:bb-2025-11-22@lotledger\r\n")
}

func TestCalendar_CustomFileJSON(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "events.yaml")
	src := `events:
  - id: spring-game
    title: Spring Game
    type: Football
    date: "2026-04-11"
    lots_affected: [Lot 72]
    impact: Low
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))

	resp := decodeResponse(t, env.mustRun("--format=json", "calendar", "--file="+path))
	events := resp.Data.([]any)
	require.Len(t, events, 1)
	assert.Equal(t, "spring-game", events[0].(map[string]any)["id"])
}

// cliQueue delivers one batch, then blocks until ctx is done.
type cliQueue struct {
	mu      sync.Mutex
	batch   []sensor.Message
	deleted int
}

func (q *cliQueue) Receive(ctx context.Context) ([]sensor.Message, error) {
	q.mu.Lock()
	b := q.batch
	q.batch = nil
	q.mu.Unlock()
	if len(b) > 0 {
		return b, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *cliQueue) Delete(context.Context, string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted++
	return nil
}

func (q *cliQueue) deletedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.deleted
}

func TestConsume(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("seed")

	q := &cliQueue{batch: []sensor.Message{
		{ID: "1", Receipt: "r1", Body: `{"lot_id":"lot_72","direction":"ENTRY","source":"gate-3","confidence":0.8}`},
		{ID: "2", Receipt: "r2", Body: `{"lot_id":"lot_72","direction":"ENTRY"}`},
		{ID: "3", Receipt: "r3", Body: `{"lot_id":"nowhere","direction":"ENTRY"}`},
	}}
	env.opts.OpenQueue = func(context.Context, config.SensorConfig) (sensor.Queue, error) {
		return q, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, _, err := env.runContext(ctx, "consume", "--workers=2")
		done <- result{out, err}
	}()

	require.Eventually(t, func() bool { return q.deletedCount() == 3 }, 10*time.Second, 10*time.Millisecond)
	cancel()
	res := <-done
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Consuming sensor events with 2 worker(s)")
	assert.Contains(t, res.out, "Consumer stopped")

	assert.Contains(t, env.mustRun("status", "--lot=lot_72"), "count_now=2")
	events := env.mustRun("events", "--lot=lot_72")
	assert.Contains(t, events, "gate-3")
	assert.Contains(t, events, "sensor")
}

func TestConsume_QueueNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("SQS_EVENT_QUEUE_URL", "")
	t.Setenv("LOTLEDGER_SQS_QUEUE_URL", "")

	_, _, err := env.run("consume")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue URL is not configured")
}
