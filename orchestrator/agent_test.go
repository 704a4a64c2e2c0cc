package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
)

// fakeProc creates /proc/<pid> below root with the given cmdline and comm.
func fakeProc(t *testing.T, root, pid, cmdline, comm string) {
	dir := filepath.Join(root, pid)
	assert.NoError(t, os.MkdirAll(dir, 0755))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(cmdline), 0444))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0444))
}

func TestProcfsAgentDetector_Running(t *testing.T) {
	root := t.TempDir()
	fakeProc(t, root, "1", "/sbin/init\x00", "init")
	fakeProc(t, root, "310", "/opt/mms/mongodb-mms-automation-agent\x00-f\x00/etc/mms/agent.config\x00", "mongodb-mms-aut")
	// not a process directory
	assert.NoError(t, os.MkdirAll(filepath.Join(root, "sys"), 0755))

	fs, err := procfs.NewFS(root)
	assert.NoError(t, err)

	running, err := (&ProcfsAgentDetector{FS: fs, Name: DefaultAgentName}).Running()
	assert.NoError(t, err)
	assert.True(t, running)

	running, err = (&ProcfsAgentDetector{FS: fs, Name: "other-agent"}).Running()
	assert.NoError(t, err)
	assert.False(t, running)
}

func TestProcfsAgentDetector_FallsBackToComm(t *testing.T) {
	root := t.TempDir()
	// kernel threads have an empty cmdline
	fakeProc(t, root, "2", "", "kthreadd")

	fs, err := procfs.NewFS(root)
	assert.NoError(t, err)

	running, err := (&ProcfsAgentDetector{FS: fs, Name: "kthreadd"}).Running()
	assert.NoError(t, err)
	assert.True(t, running)
}
