package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/KIT-MAMID/benchfleet/automation"
	"github.com/stretchr/testify/assert"
	clocktesting "k8s.io/utils/clock/testing"
)

func newTestWatcher(t *testing.T, table *fakeProcessTable, status StatusChecker) (*Watcher, *clocktesting.FakeClock) {
	clk := clocktesting.NewFakeClock(time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC))
	w := NewWatcher(t.TempDir(), table, status, clk)
	w.Metrics = NewMetrics()
	return w, clk
}

func documentWith(names ...string) *automation.Document {
	doc := &automation.Document{}
	for _, name := range names {
		doc.Processes = append(doc.Processes, &automation.Process{Name: name, ProcessType: automation.ProcessTypeMongod})
	}
	return doc
}

func TestWatcher_WaitForShutdown_KillsWhatTheAgentLeftRunning(t *testing.T) {
	table := newFakeProcessTable()
	w, clk := newTestWatcher(t, table, nil)
	start := clk.Now()

	polite, stubborn := table.spawn(), table.spawn()
	stubborn.stubborn = true
	writeMarker(w.PIDDir, "a", polite.pid)
	writeMarker(w.PIDDir, "b", stubborn.pid)
	writeMarker(w.PIDDir, "stale", 1)

	assert.NoError(t, w.WaitForShutdown())

	assert.Empty(t, table.living())
	assert.True(t, stubborn.killed)
	assert.False(t, polite.killed)
	assert.True(t, clk.Since(start) >= w.Timeout+w.KillGracePeriod)

	markers, err := scanPIDMarkers(w.PIDDir)
	assert.NoError(t, err)
	assert.Empty(t, markers)
}

func TestWatcher_WaitForShutdown_NothingRunning(t *testing.T) {
	table := newFakeProcessTable()
	w, clk := newTestWatcher(t, table, nil)
	start := clk.Now()

	dead := table.spawn()
	dead.alive = false
	writeMarker(w.PIDDir, "a", dead.pid)
	assert.NoError(t, os.WriteFile(filepath.Join(w.PIDDir, "b.pid"), nil, 0644))

	assert.NoError(t, w.WaitForShutdown())
	assert.Equal(t, time.Duration(0), clk.Since(start))

	markers, err := scanPIDMarkers(w.PIDDir)
	assert.NoError(t, err)
	assert.Empty(t, markers)
}

func TestWatcher_WaitForShutdown_Unkillable(t *testing.T) {
	table := newFakeProcessTable()
	w, _ := newTestWatcher(t, table, nil)

	p := table.spawn()
	p.stubborn, p.unkillable = true, true
	writeMarker(w.PIDDir, "a", p.pid)
	writeMarker(w.PIDDir, "stale", 1)

	err := w.WaitForShutdown()
	assert.True(t, automation.IsError(err, automation.ShutdownTimeout), "unexpected error %v", err)

	markers, err := scanPIDMarkers(w.PIDDir)
	assert.NoError(t, err)
	assert.Empty(t, markers)
}

func TestWatcher_WaitForStartup(t *testing.T) {
	table := newFakeProcessTable()
	w, _ := newTestWatcher(t, table, nil)
	doc := documentWith("a", "b")
	ignored := &automation.Process{Name: "ignored", Ignore: true}
	doc.Processes = append(doc.Processes, ignored)

	writeMarker(w.PIDDir, "a", table.spawn().pid)
	writeMarker(w.PIDDir, "b", table.spawn().pid)

	assert.NoError(t, w.WaitForStartup(doc))
}

func TestWatcher_WaitForStartup_Timeout(t *testing.T) {
	table := newFakeProcessTable()
	w, clk := newTestWatcher(t, table, nil)
	start := clk.Now()

	writeMarker(w.PIDDir, "a", table.spawn().pid)

	err := w.WaitForStartup(documentWith("a", "b"))
	assert.True(t, automation.IsError(err, automation.StartupTimeout), "unexpected error %v", err)
	assert.Contains(t, err.Error(), "[b]")
	assert.True(t, clk.Since(start) >= w.Timeout)
}

func TestWatcher_WaitForStartup_IncompleteMarkerIsNotFatal(t *testing.T) {
	table := newFakeProcessTable()
	w, _ := newTestWatcher(t, table, nil)

	assert.NoError(t, os.WriteFile(automation.PIDFilePath(w.PIDDir, "a"), nil, 0644))

	err := w.WaitForStartup(documentWith("a"))
	assert.True(t, automation.IsError(err, automation.StartupTimeout), "unexpected error %v", err)
}

func TestWatcher_WaitForStartup_DeadProcess(t *testing.T) {
	table := newFakeProcessTable()
	w, clk := newTestWatcher(t, table, nil)
	start := clk.Now()

	crashed := table.spawn()
	crashed.alive = false
	writeMarker(w.PIDDir, "a", crashed.pid)

	err := w.WaitForStartup(documentWith("a"))
	assert.True(t, automation.IsError(err, automation.ProcessFailedToStart), "unexpected error %v", err)
	assert.Equal(t, time.Duration(0), clk.Since(start), "failure must be reported without waiting")
}

func TestWatcher_WaitForStartup_GarbageMarker(t *testing.T) {
	table := newFakeProcessTable()
	w, _ := newTestWatcher(t, table, nil)

	assert.NoError(t, os.WriteFile(automation.PIDFilePath(w.PIDDir, "a"), []byte("not a pid"), 0644))

	err := w.WaitForStartup(documentWith("a"))
	assert.True(t, automation.IsError(err, automation.ProcessFailedToStart), "unexpected error %v", err)
}

func TestWatcher_WaitForStartup_SkipsDisabled(t *testing.T) {
	table := newFakeProcessTable()
	w, _ := newTestWatcher(t, table, nil)
	doc := documentWith("a", "b")
	doc.Processes[1].Disabled = true

	writeMarker(w.PIDDir, "a", table.spawn().pid)

	assert.NoError(t, w.WaitForStartup(doc))
}

func replicatedDocument() *automation.Document {
	doc := documentWith("a", "b")
	doc.Processes[1].ConnectTo = true
	doc.Processes[1].SetPort(27018)
	return doc
}

func TestWatcher_WaitForPrimary(t *testing.T) {
	status := &fakeStatusChecker{primaryAfter: 5, setName: "bench"}
	w, _ := newTestWatcher(t, newFakeProcessTable(), status)

	assert.NoError(t, w.WaitForPrimary(replicatedDocument(), "bench"))
	assert.Len(t, status.queries, 5)
	assert.Equal(t, automation.Endpoint{Hostname: "localhost", Port: 27018}, status.queries[0])
}

func TestWatcher_WaitForPrimary_Timeout(t *testing.T) {
	status := &fakeStatusChecker{primaryAfter: -1}
	w, clk := newTestWatcher(t, newFakeProcessTable(), status)
	start := clk.Now()

	err := w.WaitForPrimary(replicatedDocument(), "bench")
	assert.True(t, automation.IsError(err, automation.PrimaryElectionTimeout), "unexpected error %v", err)
	assert.True(t, clk.Since(start) >= w.Timeout)
}

func TestWatcher_WaitForPrimary_NoneDesignated(t *testing.T) {
	status := &fakeStatusChecker{primaryAfter: 1, setName: "bench"}
	w, _ := newTestWatcher(t, newFakeProcessTable(), status)

	err := w.WaitForPrimary(documentWith("a", "b"), "bench")
	assert.True(t, automation.IsError(err, automation.NoPrimaryDesignated), "unexpected error %v", err)
	assert.Empty(t, status.queries)
}

func TestWatcher_WaitForPrimary_SeveralDesignated(t *testing.T) {
	status := &fakeStatusChecker{primaryAfter: 1, setName: "bench"}
	w, _ := newTestWatcher(t, newFakeProcessTable(), status)
	doc := replicatedDocument()
	doc.Processes[0].ConnectTo = true

	err := w.WaitForPrimary(doc, "bench")
	assert.True(t, automation.IsError(err, automation.AmbiguousPrimary), "unexpected error %v", err)
	assert.Empty(t, status.queries)
}
