// forgeboard/utils/system.go
package utils

import (
	"time"
)

// Now is the clock behind cookie expiry and stored timestamps. Tests may replace it.
var Now = time.Now

func GetTime() time.Time {
	return Now()
}

// GetSQLTime returns the current time in UTC, the form every stored timestamp uses.
func GetSQLTime() time.Time {
	return Now().UTC()
}

// BackupStamp formats t for backup file names. Milliseconds keep back-to-back backups apart.
func BackupStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02_15-04-05.000")
}
