package publisher

import (
	"encoding/base64"
	"encoding/json"
	"math"

	"github.com/stadtaev/beatstatus/internal/status"
)

// Number is a float that encodes NaN and infinities as null instead of
// failing the whole document.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// Document is the wire form of status.Status. Every field is always
// present; absent optional data is null.
type Document struct {
	Game           GameDoc           `json:"game"`
	Beatmap        BeatmapDoc        `json:"beatmap"`
	Performance    PerformanceDoc    `json:"performance"`
	Mod            ModDoc            `json:"mod"`
	PlayerSettings PlayerSettingsDoc `json:"playerSettings"`
	NoteCut        NoteCutDoc        `json:"noteCut"`
	BeatmapEvent   BeatmapEventDoc   `json:"beatmapEvent"`
}

type GameDoc struct {
	PluginVersion string `json:"pluginVersion"`
	GameVersion   string `json:"gameVersion"`
	Scene         string `json:"scene"`
	Mode          string `json:"mode"`
	PartyMode     bool   `json:"partyMode"`
}

type LevelStatsDoc struct {
	HighScore  int    `json:"highScore"`
	MaxCombo   int    `json:"maxCombo"`
	FullCombo  bool   `json:"fullCombo"`
	MaxRank    string `json:"maxRank"`
	ValidScore bool   `json:"validScore"`
	PlayCount  int    `json:"playCount"`
}

type BeatmapDoc struct {
	SongName        string                                 `json:"songName"`
	SongSubName     string                                 `json:"songSubName"`
	SongAuthorName  string                                 `json:"songAuthorName"`
	LevelAuthorName string                                 `json:"levelAuthorName"`
	SongCover       *string                                `json:"songCover"`
	SongHash        *string                                `json:"songHash"`
	LevelID         string                                 `json:"levelId"`
	SongBPM         Number                                 `json:"songBPM"`
	NoteJumpSpeed   Number                                 `json:"noteJumpSpeed"`
	SongTimeOffset  int64                                  `json:"songTimeOffset"`
	Start           int64                                  `json:"start"`
	Paused          int64                                  `json:"paused"`
	Length          int64                                  `json:"length"`
	Difficulty      string                                 `json:"difficulty"`
	NotesCount      int                                    `json:"notesCount"`
	BombsCount      int                                    `json:"bombsCount"`
	ObstaclesCount  int                                    `json:"obstaclesCount"`
	MaxScore        int                                    `json:"maxScore"`
	MaxRank         string                                 `json:"maxRank"`
	EnvironmentName string                                 `json:"environmentName"`
	LevelStats      [status.DifficultyCount]*LevelStatsDoc `json:"levelStats"`
}

type PerformanceDoc struct {
	Score              int    `json:"score"`
	CurrentMaxScore    int    `json:"currentMaxScore"`
	Rank               string `json:"rank"`
	PassedNotes        int    `json:"passedNotes"`
	HitNotes           int    `json:"hitNotes"`
	MissedNotes        int    `json:"missedNotes"`
	PassedBombs        int    `json:"passedBombs"`
	HitBombs           int    `json:"hitBombs"`
	Combo              int    `json:"combo"`
	MaxCombo           int    `json:"maxCombo"`
	Multiplier         int    `json:"multiplier"`
	MultiplierProgress Number `json:"multiplierProgress"`
	BatteryEnergy      int    `json:"batteryEnergy"`
	SongPosition       int64  `json:"songPosition"`
	HeadInObstacle     bool   `json:"headInObstacle"`
}

type ModDoc struct {
	Multiplier          Number `json:"multiplier"`
	Obstacles           string `json:"obstacles"`
	InstaFail           bool   `json:"instaFail"`
	NoFail              bool   `json:"noFail"`
	BatteryEnergy       bool   `json:"batteryEnergy"`
	BatteryLives        int    `json:"batteryLives"`
	DisappearingArrows  bool   `json:"disappearingArrows"`
	NoBombs             bool   `json:"noBombs"`
	SongSpeed           string `json:"songSpeed"`
	SongSpeedMultiplier Number `json:"songSpeedMultiplier"`
	NoArrows            bool   `json:"noArrows"`
	GhostNotes          bool   `json:"ghostNotes"`
	FailOnSaberClash    bool   `json:"failOnSaberClash"`
	StrictAngles        bool   `json:"strictAngles"`
	FastNotes           bool   `json:"fastNotes"`
}

type PlayerSettingsDoc struct {
	StaticLights bool   `json:"staticLights"`
	LeftHanded   bool   `json:"leftHanded"`
	PlayerHeight Number `json:"playerHeight"`
	SfxVolume    Number `json:"sfxVolume"`
	ReduceDebris bool   `json:"reduceDebris"`
	NoHUD        bool   `json:"noHUD"`
	AdvancedHUD  bool   `json:"advancedHUD"`
	AutoRestart  bool   `json:"autoRestart"`
}

// NoteCutDoc flattens the note and its optional cut detail. Cut fields
// are null for misses.
type NoteCutDoc struct {
	NoteID                int        `json:"noteID"`
	NoteType              string     `json:"noteType"`
	NoteCutDirection      string     `json:"noteCutDirection"`
	NoteLine              int        `json:"noteLine"`
	NoteLayer             int        `json:"noteLayer"`
	SpeedOK               *bool      `json:"speedOK"`
	DirectionOK           *bool      `json:"directionOK"`
	SaberTypeOK           *bool      `json:"saberTypeOK"`
	WasCutTooSoon         *bool      `json:"wasCutTooSoon"`
	InitialScore          int        `json:"initialScore"`
	FinalScore            int        `json:"finalScore"`
	CutDistanceScore      int        `json:"cutDistanceScore"`
	Multiplier            int        `json:"multiplier"`
	SaberSpeed            *Number    `json:"saberSpeed"`
	SaberDir              *[3]Number `json:"saberDir"`
	SaberType             *string    `json:"saberType"`
	SwingRating           *Number    `json:"swingRating"`
	TimeDeviation         *Number    `json:"timeDeviation"`
	CutDirectionDeviation *Number    `json:"cutDirectionDeviation"`
	CutPoint              *[3]Number `json:"cutPoint"`
	CutNormal             *[3]Number `json:"cutNormal"`
	CutDistanceToCenter   *Number    `json:"cutDistanceToCenter"`
	TimeToNextBasicNote   Number     `json:"timeToNextBasicNote"`
}

type BeatmapEventDoc struct {
	Type  int `json:"type"`
	Value int `json:"value"`
}

// Render converts s into its wire document. It never fails: every
// missing value has an explicit null form.
func Render(s *status.Status, embedCover bool) Document {
	return Document{
		Game: GameDoc{
			PluginVersion: s.Game.PluginVersion,
			GameVersion:   s.Game.GameVersion,
			Scene:         s.Game.Scene,
			Mode:          s.Game.Mode,
			PartyMode:     s.Game.PartyMode,
		},
		Beatmap:     renderBeatmap(&s.Beatmap, embedCover),
		Performance: renderPerformance(&s.Performance),
		Mod: ModDoc{
			Multiplier:          Number(s.Mod.Multiplier),
			Obstacles:           s.Mod.Obstacles,
			InstaFail:           s.Mod.InstaFail,
			NoFail:              s.Mod.NoFail,
			BatteryEnergy:       s.Mod.BatteryEnergy,
			BatteryLives:        s.Mod.BatteryLives,
			DisappearingArrows:  s.Mod.DisappearingArrows,
			NoBombs:             s.Mod.NoBombs,
			SongSpeed:           s.Mod.SongSpeed,
			SongSpeedMultiplier: Number(s.Mod.SongSpeedMultiplier),
			NoArrows:            s.Mod.NoArrows,
			GhostNotes:          s.Mod.GhostNotes,
			FailOnSaberClash:    s.Mod.FailOnSaberClash,
			StrictAngles:        s.Mod.StrictAngles,
			FastNotes:           s.Mod.FastNotes,
		},
		PlayerSettings: PlayerSettingsDoc{
			StaticLights: s.PlayerSettings.StaticLights,
			LeftHanded:   s.PlayerSettings.LeftHanded,
			PlayerHeight: Number(s.PlayerSettings.PlayerHeight),
			SfxVolume:    Number(s.PlayerSettings.SfxVolume),
			ReduceDebris: s.PlayerSettings.ReduceDebris,
			NoHUD:        s.PlayerSettings.NoHUD,
			AdvancedHUD:  s.PlayerSettings.AdvancedHUD,
			AutoRestart:  s.PlayerSettings.AutoRestart,
		},
		NoteCut: renderNoteCut(&s.NoteCut),
		BeatmapEvent: BeatmapEventDoc{
			Type:  s.BeatmapEvent.Type,
			Value: s.BeatmapEvent.Value,
		},
	}
}

func renderBeatmap(b *status.Beatmap, embedCover bool) BeatmapDoc {
	doc := BeatmapDoc{
		SongName:        b.SongName,
		SongSubName:     b.SongSubName,
		SongAuthorName:  b.SongAuthorName,
		LevelAuthorName: b.LevelAuthorName,
		LevelID:         b.LevelID,
		SongBPM:         Number(b.SongBPM),
		NoteJumpSpeed:   Number(b.NoteJumpSpeed),
		SongTimeOffset:  b.SongTimeOffset,
		Start:           b.Start,
		Paused:          b.Paused,
		Length:          b.Length,
		Difficulty:      b.Difficulty,
		NotesCount:      b.NotesCount,
		BombsCount:      b.BombsCount,
		ObstaclesCount:  b.ObstaclesCount,
		MaxScore:        b.MaxScore,
		MaxRank:         b.MaxRank,
		EnvironmentName: b.EnvironmentName,
	}
	if embedCover && len(b.SongCover) > 0 {
		cover := base64.StdEncoding.EncodeToString(b.SongCover)
		doc.SongCover = &cover
	}
	if b.SongHash != "" {
		hash := b.SongHash
		doc.SongHash = &hash
	}
	for i, ls := range b.LevelStats {
		if ls == nil {
			continue
		}
		doc.LevelStats[i] = &LevelStatsDoc{
			HighScore:  ls.HighScore,
			MaxCombo:   ls.MaxCombo,
			FullCombo:  ls.FullCombo,
			MaxRank:    ls.MaxRank,
			ValidScore: ls.ValidScore,
			PlayCount:  ls.PlayCount,
		}
	}
	return doc
}

func renderPerformance(p *status.Performance) PerformanceDoc {
	return PerformanceDoc{
		Score:              p.Score,
		CurrentMaxScore:    p.CurrentMaxScore,
		Rank:               p.Rank,
		PassedNotes:        p.PassedNotes,
		HitNotes:           p.HitNotes,
		MissedNotes:        p.MissedNotes,
		PassedBombs:        p.PassedBombs,
		HitBombs:           p.HitBombs,
		Combo:              p.Combo,
		MaxCombo:           p.MaxCombo,
		Multiplier:         p.Multiplier,
		MultiplierProgress: Number(p.MultiplierProgress),
		BatteryEnergy:      p.BatteryEnergy,
		SongPosition:       p.SongPosition,
		HeadInObstacle:     p.HeadInObstacle,
	}
}

func renderNoteCut(n *status.NoteCut) NoteCutDoc {
	doc := NoteCutDoc{
		NoteID:              n.Note.ID,
		NoteType:            n.Note.Type,
		NoteCutDirection:    n.Note.CutDirection,
		NoteLine:            n.Note.Line,
		NoteLayer:           n.Note.Layer,
		InitialScore:        n.InitialScore,
		FinalScore:          n.FinalScore,
		CutDistanceScore:    n.CutDistanceScore,
		Multiplier:          n.Multiplier,
		TimeToNextBasicNote: Number(n.Note.TimeToNextBasicNote),
	}
	if c := n.Cut; c != nil {
		doc.SpeedOK = ptr(c.SpeedOK)
		doc.DirectionOK = ptr(c.DirectionOK)
		doc.SaberTypeOK = ptr(c.SaberTypeOK)
		doc.WasCutTooSoon = ptr(c.WasCutTooSoon)
		doc.SaberSpeed = ptr(Number(c.SaberSpeed))
		doc.SaberDir = vec(c.SaberDir)
		doc.SaberType = ptr(c.SaberType)
		doc.SwingRating = ptr(Number(c.SwingRating))
		doc.TimeDeviation = ptr(Number(c.TimeDeviation))
		doc.CutDirectionDeviation = ptr(Number(c.CutDirectionDeviation))
		doc.CutPoint = vec(c.CutPoint)
		doc.CutNormal = vec(c.CutNormal)
		doc.CutDistanceToCenter = ptr(Number(c.CutDistanceToCenter))
	}
	return doc
}

func ptr[T any](v T) *T { return &v }

func vec(v status.Vec3) *[3]Number {
	return &[3]Number{Number(v[0]), Number(v[1]), Number(v[2])}
}
