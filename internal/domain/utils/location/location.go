package location

import "time"

// Load returns the time zone used for log timestamps and dates shown to users.
// An empty name means UTC.
func Load(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
