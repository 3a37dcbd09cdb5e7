package logconfig

import (
	myLogger "github.com/sirupsen/logrus"
)

// This output format is used in tests (has terminal).
func ConfigDebugLogger() {
	myLogger.SetReportCaller(true)
	myLogger.SetLevel(myLogger.DebugLevel)
	myLogger.SetFormatter(terminalFormatter())
}

func ConfigInfoLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(terminalFormatter())
}

// This output format is used in production.
func ConfigProductionLogger() {
	myLogger.SetLevel(myLogger.InfoLevel)
}

// ConfigFromLevel picks a logger setup from a config string; anything
// unrecognized falls back to the production format.
func ConfigFromLevel(level string) {
	switch level {
	case "debug":
		ConfigDebugLogger()
	case "info":
		ConfigInfoLogger()
	default:
		ConfigProductionLogger()
	}
}

func terminalFormatter() *myLogger.TextFormatter {
	return &myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	}
}
