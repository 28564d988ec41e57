// Package status defines the live session status model, the change
// categories attached to every emission, and the envelope sent to
// observers. It has no external dependencies.
package status

// ScorePending is the finalScore of a note whose post-cut swing has not
// resolved yet. It keeps "in flight" apart from "resolved to zero".
const ScorePending = -1

const (
	SceneMenu = "Menu"
	SceneSong = "Song"
)

// Status is the single mutable record describing the current session.
// It is owned by one producer; readers only ever see rendered copies.
type Status struct {
	Game           Game
	Beatmap        Beatmap
	Performance    Performance
	Mod            Mod
	PlayerSettings PlayerSettings
	NoteCut        NoteCut
	BeatmapEvent   BeatmapEvent
}

type Game struct {
	PluginVersion string
	GameVersion   string
	Scene         string
	Mode          string
	PartyMode     bool
}

type Beatmap struct {
	SongName        string
	SongSubName     string
	SongAuthorName  string
	LevelAuthorName string
	// SongCover holds the encoded cover image, nil when unavailable.
	SongCover []byte
	// SongHash is empty for levels without a content hash.
	SongHash       string
	LevelID        string
	SongBPM        float64
	NoteJumpSpeed  float64
	SongTimeOffset int64
	// Start is the wall clock time in ms at which the song would have
	// begun playing at the current speed, adjusted on resume.
	Start int64
	// Paused is the wall clock time in ms the game was paused at, 0 when
	// running.
	Paused          int64
	Length          int64
	Difficulty      string
	NotesCount      int
	BombsCount      int
	ObstaclesCount  int
	MaxScore        int
	MaxRank         string
	EnvironmentName string
	LevelStats      [DifficultyCount]*LevelStats
}

type Performance struct {
	Score              int
	CurrentMaxScore    int
	Rank               string
	PassedNotes        int
	HitNotes           int
	MissedNotes        int
	PassedBombs        int
	HitBombs           int
	Combo              int
	MaxCombo           int
	Multiplier         int
	MultiplierProgress float64
	BatteryEnergy      int
	SongPosition       int64
	HeadInObstacle     bool
}

type Mod struct {
	Multiplier          float64
	Obstacles           string
	InstaFail           bool
	NoFail              bool
	BatteryEnergy       bool
	BatteryLives        int
	DisappearingArrows  bool
	NoBombs             bool
	SongSpeed           string
	SongSpeedMultiplier float64
	NoArrows            bool
	GhostNotes          bool
	FailOnSaberClash    bool
	StrictAngles        bool
	FastNotes           bool
}

type PlayerSettings struct {
	StaticLights bool
	LeftHanded   bool
	PlayerHeight float64
	SfxVolume    float64
	ReduceDebris bool
	NoHUD        bool
	AdvancedHUD  bool
	AutoRestart  bool
}

// Vec3 is an x, y, z triple as reported by the saber tracking.
type Vec3 [3]float64

// Note identifies a beatmap note independently of how it was hit.
type Note struct {
	ID                  int
	Type                string
	CutDirection        string
	Line                int
	Layer               int
	TimeToNextBasicNote float64
}

// CutDetail is the saber kinematics of a cut. Misses carry none.
type CutDetail struct {
	SpeedOK               bool
	DirectionOK           bool
	SaberTypeOK           bool
	WasCutTooSoon         bool
	SaberSpeed            float64
	SaberDir              Vec3
	SaberType             string
	SwingRating           float64
	TimeDeviation         float64
	CutDirectionDeviation float64
	CutPoint              Vec3
	CutNormal             Vec3
	CutDistanceToCenter   float64
}

type NoteCut struct {
	Note             Note
	InitialScore     int
	FinalScore       int
	CutDistanceScore int
	Multiplier       int
	// Cut is nil for missed notes and bombs.
	Cut *CutDetail
}

type BeatmapEvent struct {
	Type  int
	Value int
}

// New returns a status in its menu state with every group at its
// defaults.
func New(pluginVersion, gameVersion string) *Status {
	s := &Status{
		Game: Game{
			PluginVersion: pluginVersion,
			GameVersion:   gameVersion,
			Scene:         SceneMenu,
		},
	}
	s.ResetMapInfo()
	s.ResetPerformance()
	s.ResetNoteCut()
	return s
}

// ResetMapInfo clears the beatmap metadata together with the modifiers and
// player settings that were captured for it.
func (s *Status) ResetMapInfo() {
	s.Beatmap = Beatmap{}
	s.Mod = Mod{
		Multiplier:          1,
		SongSpeedMultiplier: 1,
	}
	s.PlayerSettings = PlayerSettings{}
}

// ResetPerformance zeroes score, combo and note counters. Beatmap fields
// are left untouched.
func (s *Status) ResetPerformance() {
	s.Performance = Performance{
		Rank:       "SSS",
		Multiplier: 1,
	}
}

// ResetNoteCut clears the detail of the most recent note interaction.
func (s *Status) ResetNoteCut() {
	s.NoteCut = NoteCut{
		Note:             Note{ID: -1},
		InitialScore:     -1,
		FinalScore:       ScorePending,
		CutDistanceScore: -1,
	}
}

// SetNoteCut replaces the note-cut group with a fresh record for note.
// cut may be nil when the note was missed.
func (s *Status) SetNoteCut(note Note, cut *CutDetail) {
	s.ResetNoteCut()
	s.NoteCut.Note = note
	if cut != nil {
		c := *cut
		s.NoteCut.Cut = &c
	}
}
