package automation

import "path/filepath"

const PIDFileSuffix = ".pid"

// The agent writes one pid marker per running process, named after the process.

func PIDFilePath(pidDir, processName string) string {
	return filepath.Join(pidDir, processName+PIDFileSuffix)
}

func DBPath(dataDir, processName string) string {
	return filepath.Join(dataDir, processName)
}

func LogPath(logDir, processName string) string {
	return filepath.Join(logDir, processName+".log")
}
