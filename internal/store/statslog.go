package store

import (
	"fmt"
	"time"

	"github.com/neoclaw-ai/teledispatch/internal/stats"
)

// StatsLog is a tab separated history of counter reports, one
// "time<TAB>total<TAB>since_last" line per report.
type StatsLog struct {
	path string
}

// NewStatsLog returns the log at path.
func NewStatsLog(path string) *StatsLog {
	return &StatsLog{path: path}
}

// Append adds one report.
func (l *StatsLog) Append(s stats.Snapshot) error {
	return appendLine(l.path, fmt.Sprintf("%s\t%d\t%d", s.At.Format(time.RFC3339), s.Total, s.SinceLast))
}
