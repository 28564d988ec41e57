package status

import "fmt"

// Difficulty indexes Beatmap.LevelStats. The order is fixed.
type Difficulty int

const (
	Easy Difficulty = iota
	Normal
	Hard
	Expert
	ExpertPlus

	DifficultyCount = 5
)

var difficultyNames = [DifficultyCount]string{"Easy", "Normal", "Hard", "Expert", "ExpertPlus"}

func (d Difficulty) String() string {
	if d < 0 || d >= DifficultyCount {
		return fmt.Sprintf("Difficulty(%d)", int(d))
	}
	return difficultyNames[d]
}

// ParseDifficulty maps a difficulty label back to its index.
func ParseDifficulty(name string) (Difficulty, bool) {
	for i, n := range difficultyNames {
		if n == name {
			return Difficulty(i), true
		}
	}
	return 0, false
}

// LevelStats is the player's history for one difficulty of a level.
type LevelStats struct {
	HighScore  int
	MaxCombo   int
	FullCombo  bool
	MaxRank    string
	ValidScore bool
	PlayCount  int
}
