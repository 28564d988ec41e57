package status

import (
	"encoding/json"
	"slices"
	"strings"
)

// ChangeSet marks which groups of the status are authoritative for one
// emission. The full document is always sent; the set is a hint.
type ChangeSet uint8

const (
	ChangedGame ChangeSet = 1 << iota
	ChangedBeatmap
	ChangedPerformance
	ChangedNoteCut
	ChangedMod
	ChangedPlayerSettings
	ChangedBeatmapEvent

	ChangedAll                   = ChangedGame | ChangedBeatmap | ChangedPerformance | ChangedNoteCut | ChangedMod | ChangedPlayerSettings | ChangedBeatmapEvent
	ChangedAllButNoteCut         = ChangedAll &^ ChangedNoteCut
	ChangedPerformanceAndNoteCut = ChangedPerformance | ChangedNoteCut
)

// categories lists every single-bit category in wire order.
var categories = []struct {
	set  ChangeSet
	name string
}{
	{ChangedGame, "game"},
	{ChangedBeatmap, "beatmap"},
	{ChangedPerformance, "performance"},
	{ChangedNoteCut, "noteCut"},
	{ChangedMod, "mod"},
	{ChangedPlayerSettings, "playerSettings"},
	{ChangedBeatmapEvent, "beatmapEvent"},
}

// Has reports whether every category in o is also in c.
func (c ChangeSet) Has(o ChangeSet) bool { return c&o == o }

// Names returns the category names in c, in wire order.
func (c ChangeSet) Names() []string {
	names := make([]string, 0, len(categories))
	for _, cat := range categories {
		if c.Has(cat.set) {
			names = append(names, cat.name)
		}
	}
	return names
}

func (c ChangeSet) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), "+")
}

func (c ChangeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Names())
}

func (c *ChangeSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set ChangeSet
	for _, n := range names {
		for _, cat := range categories {
			if cat.name == n {
				set |= cat.set
			}
		}
	}
	*c = set
	return nil
}

// Event names emitted by the producer.
const (
	EventHello         = "hello"
	EventMenu          = "menu"
	EventSongStart     = "songStart"
	EventPause         = "pause"
	EventResume        = "resume"
	EventNoteCut       = "noteCut"
	EventBombCut       = "bombCut"
	EventNoteMissed    = "noteMissed"
	EventBombMissed    = "bombMissed"
	EventNoteFullyCut  = "noteFullyCut"
	EventScoreChanged  = "scoreChanged"
	EventFinished      = "finished"
	EventFailed        = "failed"
	EventBeatmapEvent  = "beatmapEvent"
	EventObstacleEnter = "obstacleEnter"
	EventObstacleExit  = "obstacleExit"
)

var classification = map[string]ChangeSet{
	EventHello:         ChangedAll,
	EventMenu:          ChangedAllButNoteCut,
	EventSongStart:     ChangedAllButNoteCut,
	EventPause:         ChangedBeatmap,
	EventResume:        ChangedBeatmap,
	EventNoteCut:       ChangedPerformanceAndNoteCut,
	EventBombCut:       ChangedPerformanceAndNoteCut,
	EventNoteMissed:    ChangedPerformanceAndNoteCut,
	EventBombMissed:    ChangedPerformanceAndNoteCut,
	EventNoteFullyCut:  ChangedPerformanceAndNoteCut,
	EventScoreChanged:  ChangedPerformance,
	EventFinished:      ChangedPerformance,
	EventFailed:        ChangedPerformance,
	EventBeatmapEvent:  ChangedBeatmapEvent,
	EventObstacleEnter: ChangedPerformance,
	EventObstacleExit:  ChangedPerformance,
}

// Classify returns the change set statically bound to event.
func Classify(event string) (ChangeSet, bool) {
	c, ok := classification[event]
	return c, ok
}

// Events returns every known event name except the snapshot marker,
// sorted.
func Events() []string {
	events := make([]string, 0, len(classification))
	for e := range classification {
		if e != EventHello {
			events = append(events, e)
		}
	}
	slices.Sort(events)
	return events
}
