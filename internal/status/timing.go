package status

import "strings"

const customLevelPrefix = "custom_level_"

// ScaleMillis converts a song time in seconds to wall clock milliseconds
// at the given song speed. A non-positive speed is treated as 1.
func ScaleMillis(seconds, speed float64) int64 {
	if speed <= 0 {
		speed = 1
	}
	return int64(seconds * 1000 / speed)
}

// SongHash extracts the content hash from a custom level id. Official
// levels and work-in-progress maps have none.
func SongHash(levelID string) string {
	if !strings.HasPrefix(levelID, customLevelPrefix) || strings.HasSuffix(levelID, " WIP") {
		return ""
	}
	rest := levelID[len(customLevelPrefix):]
	if len(rest) < 40 {
		return ""
	}
	return rest[:40]
}

// ObstacleTracker turns the per-frame "head inside an obstacle" sample
// into enter/exit edges.
type ObstacleTracker struct {
	inside bool
}

// Update returns the event to emit, if the sample changed state.
func (o *ObstacleTracker) Update(inside bool) (string, bool) {
	switch {
	case inside && !o.inside:
		o.inside = true
		return EventObstacleEnter, true
	case !inside && o.inside:
		o.inside = false
		return EventObstacleExit, true
	}
	return "", false
}

func (o *ObstacleTracker) Inside() bool { return o.inside }
