// Package demo plays synthetic songs through the producer API so
// overlays can be developed without a running game.
package demo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/stadtaev/beatstatus/internal/status"
)

// Producer is the publishing side of the status model;
// *publisher.Publisher implements it.
type Producer interface {
	Status() *status.Status
	Cuts() *status.PendingCuts
	ResetMapInfo()
	ResetPerformance()
	ResetNoteCut()
	Emit(event string) error
}

type Song struct {
	Name        string
	SubName     string
	Author      string
	Mapper      string
	LevelID     string
	Difficulty  status.Difficulty
	BPM         float64
	NJS         float64
	Environment string
	Notes       int
	Bombs       int
	Obstacles   int
	// Speed is the song speed modifier, 1 for normal.
	Speed float64
	Cover []byte
}

// DefaultSong is played by Run.
var DefaultSong = Song{
	Name:        "Overkill",
	SubName:     "Original Mix",
	Author:      "Demo Artist",
	Mapper:      "beatstatus",
	LevelID:     "custom_level_2FDDB136BDA7F9E29B4CB6621D6D8E0F8A43B126",
	Difficulty:  status.Expert,
	BPM:         174,
	NJS:         18,
	Environment: "DefaultEnvironment",
	Notes:       32,
	Bombs:       4,
	Obstacles:   1,
	Speed:       1,
}

// Every missEvery-th note is missed and every lightEvery-th note is
// followed by a lighting event. maxCut is the best score of one cut.
const (
	missEvery  = 7
	lightEvery = 8
	maxCut     = 115
)

type Driver struct {
	producer Producer
	clock    clockwork.Clock
	logger   *slog.Logger
	tempo    time.Duration

	obstacle status.ObstacleTracker
	passed   int
}

// New returns a driver spacing notes tempo apart. A zero tempo plays
// without waiting.
func New(producer Producer, clock clockwork.Clock, logger *slog.Logger, tempo time.Duration) *Driver {
	return &Driver{producer: producer, clock: clock, logger: logger, tempo: tempo}
}

// Run plays DefaultSong repeatedly until ctx ends.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("demo driver started", "tempo", d.tempo)
	for {
		if err := d.PlaySong(ctx, DefaultSong); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := d.wait(ctx, 4*d.tempo); err != nil {
			return nil
		}
	}
}

// PlaySong takes the status from the menu through one song and back to
// the menu, emitting in the order the game reports events.
func (d *Driver) PlaySong(ctx context.Context, song Song) error {
	s := d.producer.Status()
	d.passed = 0
	d.obstacle = status.ObstacleTracker{}

	if err := d.start(song); err != nil {
		return err
	}

	bombAt := spread(song.Bombs, song.Notes)
	obstacleAt := song.Notes / 3
	pauseAt := song.Notes / 2

	for i := range song.Notes {
		if err := d.wait(ctx, d.tempo); err != nil {
			return err
		}
		s.Performance.SongPosition = d.songPosition()

		if bombAt[i] {
			if err := d.bomb(i); err != nil {
				return err
			}
		}

		switch {
		case i%missEvery == missEvery-1:
			if err := d.miss(i); err != nil {
				return err
			}
		default:
			if err := d.cut(ctx, i); err != nil {
				return err
			}
		}

		if i%lightEvery == lightEvery-1 {
			s.BeatmapEvent = status.BeatmapEvent{Type: i % 5, Value: 1 + i%7}
			if err := d.producer.Emit(status.EventBeatmapEvent); err != nil {
				return err
			}
		}

		if song.Obstacles > 0 && (i == obstacleAt || i == obstacleAt+2) {
			if err := d.headInObstacle(i == obstacleAt); err != nil {
				return err
			}
		}

		if i == pauseAt {
			if err := d.pause(ctx); err != nil {
				return err
			}
		}
	}

	if err := d.headInObstacle(false); err != nil {
		return err
	}
	if err := d.producer.Emit(status.EventFinished); err != nil {
		return err
	}
	return d.menu()
}

func (d *Driver) start(song Song) error {
	s := d.producer.Status()
	d.producer.ResetMapInfo()
	d.producer.ResetPerformance()
	d.producer.ResetNoteCut()
	d.producer.Cuts().Clear()

	speed := song.Speed
	if speed <= 0 {
		speed = 1
	}
	seconds := float64(song.Notes) * d.tempo.Seconds()

	s.Game.Scene = status.SceneSong
	s.Game.Mode = "SoloStandard"
	s.Beatmap = status.Beatmap{
		SongName:        song.Name,
		SongSubName:     song.SubName,
		SongAuthorName:  song.Author,
		LevelAuthorName: song.Mapper,
		SongCover:       song.Cover,
		SongHash:        status.SongHash(song.LevelID),
		LevelID:         song.LevelID,
		SongBPM:         song.BPM,
		NoteJumpSpeed:   song.NJS,
		Start:           d.clock.Now().UnixMilli(),
		Length:          status.ScaleMillis(seconds, speed),
		Difficulty:      song.Difficulty.String(),
		NotesCount:      song.Notes,
		BombsCount:      song.Bombs,
		ObstaclesCount:  song.Obstacles,
		MaxScore:        MaxScore(song.Notes),
		MaxRank:         "SSS",
		EnvironmentName: song.Environment,
	}
	s.Beatmap.LevelStats[song.Difficulty] = &status.LevelStats{
		HighScore:  MaxScore(song.Notes) * 3 / 4,
		MaxCombo:   song.Notes / 2,
		MaxRank:    "A",
		ValidScore: true,
		PlayCount:  3,
	}
	s.Mod.SongSpeedMultiplier = speed
	s.PlayerSettings = status.PlayerSettings{PlayerHeight: 1.8, SfxVolume: 0.7, AdvancedHUD: true}

	d.logger.Info("demo song started", "song", song.Name, "difficulty", s.Beatmap.Difficulty)
	return d.producer.Emit(status.EventSongStart)
}

func (d *Driver) menu() error {
	s := d.producer.Status()
	s.Game.Scene = status.SceneMenu
	s.Game.Mode = ""
	d.producer.ResetMapInfo()
	d.producer.ResetPerformance()
	d.producer.ResetNoteCut()
	d.producer.Cuts().Clear()
	return d.producer.Emit(status.EventMenu)
}

// cut reports a successful cut: combo and multiplier first, then the cut
// with its final score pending, the score, the resolved cut and the
// score again.
func (d *Driver) cut(ctx context.Context, i int) error {
	s := d.producer.Status()
	p := &s.Performance

	p.Combo++
	p.MaxCombo = max(p.MaxCombo, p.Combo)
	d.passed++
	advanceMultiplier(p)

	note := noteAt(i)
	detail := &status.CutDetail{
		SpeedOK:             true,
		DirectionOK:         true,
		SaberTypeOK:         true,
		SaberSpeed:          4 + float64(i%5),
		SaberDir:            status.Vec3{0, -1, 0},
		SaberType:           saberFor(note),
		SwingRating:         0.8,
		TimeDeviation:       0.01,
		CutPoint:            status.Vec3{float64(note.Line)*0.6 - 0.9, float64(note.Layer)*0.6 + 0.8, 0},
		CutNormal:           status.Vec3{1, 0, 0},
		CutDistanceToCenter: float64(i%4) * 0.05,
	}
	initial := 70 + 15 - (i%4)*5
	after := 30 - i%3*5

	s.SetNoteCut(note, detail)
	s.NoteCut.InitialScore = initial
	s.NoteCut.CutDistanceScore = 15 - (i%4)*5
	s.NoteCut.Multiplier = p.Multiplier
	token := d.producer.Cuts().Track(note)
	p.PassedNotes++
	p.HitNotes++
	if err := d.producer.Emit(status.EventNoteCut); err != nil {
		return err
	}

	if err := d.wait(ctx, d.tempo/2); err != nil {
		return err
	}
	multiplier := p.Multiplier
	p.Score += initial * multiplier
	d.scoreMax()
	if err := d.producer.Emit(status.EventScoreChanged); err != nil {
		return err
	}

	resolved, ok := d.producer.Cuts().Resolve(token)
	if !ok {
		return fmt.Errorf("cut %d resolved twice", note.ID)
	}
	s.SetNoteCut(resolved, detail)
	s.NoteCut.InitialScore = initial
	s.NoteCut.FinalScore = initial + after
	s.NoteCut.CutDistanceScore = 15 - (i%4)*5
	s.NoteCut.Multiplier = multiplier
	if err := d.producer.Emit(status.EventNoteFullyCut); err != nil {
		return err
	}

	p.Score += after * multiplier
	updateRank(p)
	return d.producer.Emit(status.EventScoreChanged)
}

func (d *Driver) miss(i int) error {
	s := d.producer.Status()
	p := &s.Performance

	p.Combo = 0
	d.passed++
	breakMultiplier(p)
	p.PassedNotes++
	p.MissedNotes++
	d.scoreMax()
	updateRank(p)

	s.SetNoteCut(noteAt(i), nil)
	return d.producer.Emit(status.EventNoteMissed)
}

func (d *Driver) bomb(i int) error {
	s := d.producer.Status()
	p := &s.Performance
	p.PassedBombs++

	bomb := status.Note{ID: 1000 + i, Type: "Bomb", CutDirection: "None", Line: i % 4, Layer: 0}
	if i%2 == 0 {
		s.SetNoteCut(bomb, nil)
		return d.producer.Emit(status.EventBombMissed)
	}

	p.HitBombs++
	p.Combo = 0
	breakMultiplier(p)
	s.SetNoteCut(bomb, &status.CutDetail{SaberType: "SaberA", SaberSpeed: 3})
	return d.producer.Emit(status.EventBombCut)
}

func (d *Driver) headInObstacle(inside bool) error {
	event, changed := d.obstacle.Update(inside)
	if !changed {
		return nil
	}
	d.producer.Status().Performance.HeadInObstacle = inside
	return d.producer.Emit(event)
}

func (d *Driver) pause(ctx context.Context) error {
	s := d.producer.Status()
	pausedAt := d.clock.Now()
	s.Beatmap.Paused = pausedAt.UnixMilli()
	if err := d.producer.Emit(status.EventPause); err != nil {
		return err
	}

	if err := d.wait(ctx, 2*d.tempo); err != nil {
		return err
	}

	s.Beatmap.Start += d.clock.Since(pausedAt).Milliseconds()
	s.Beatmap.Paused = 0
	return d.producer.Emit(status.EventResume)
}

// scoreMax advances the perfect-play maximum by one note.
func (d *Driver) scoreMax() {
	p := &d.producer.Status().Performance
	p.CurrentMaxScore = MaxScore(d.passed)
}

func (d *Driver) songPosition() int64 {
	b := d.producer.Status().Beatmap
	return min(d.clock.Now().UnixMilli()-b.Start, b.Length)
}

func (d *Driver) wait(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.clock.After(dur):
		return nil
	}
}

func noteAt(i int) status.Note {
	directions := []string{"Down", "Up", "Left", "Right", "DownLeft", "DownRight"}
	return status.Note{
		ID:                  i,
		Type:                []string{"NoteA", "NoteB"}[i%2],
		CutDirection:        directions[i%len(directions)],
		Line:                i % 4,
		Layer:               i % 3,
		TimeToNextBasicNote: 0.5,
	}
}

func saberFor(note status.Note) string {
	if note.Type == "NoteA" {
		return "SaberA"
	}
	return "SaberB"
}

// spread marks n of total slots at even intervals.
func spread(n, total int) map[int]bool {
	marks := make(map[int]bool, n)
	if n <= 0 || total <= 0 {
		return marks
	}
	step := max(total/n, 1)
	for k := 0; k < n && k*step+step/2 < total; k++ {
		marks[k*step+step/2] = true
	}
	return marks
}

// advanceMultiplier applies one hit: the multiplier doubles after
// 2x its value consecutive hits, capped at 8.
func advanceMultiplier(p *status.Performance) {
	if p.Multiplier >= 8 {
		p.MultiplierProgress = 1
		return
	}
	need := float64(p.Multiplier * 2)
	p.MultiplierProgress += 1 / need
	if p.MultiplierProgress >= 1 {
		p.Multiplier *= 2
		p.MultiplierProgress = 0
		if p.Multiplier == 8 {
			p.MultiplierProgress = 1
		}
	}
}

func breakMultiplier(p *status.Performance) {
	p.Multiplier = max(p.Multiplier/2, 1)
	p.MultiplierProgress = 0
}

// MaxScore is the score of a perfect play over notes notes.
func MaxScore(notes int) int {
	score, multiplier, progress := 0, 1, 0
	for range notes {
		if multiplier < 8 {
			progress++
			if progress == multiplier*2 {
				multiplier *= 2
				progress = 0
			}
		}
		score += maxCut * multiplier
	}
	return score
}

func updateRank(p *status.Performance) {
	if p.CurrentMaxScore == 0 {
		return
	}
	p.Rank = Rank(float64(p.Score) / float64(p.CurrentMaxScore))
}

// Rank maps a score ratio to the letter shown in game.
func Rank(ratio float64) string {
	switch {
	case ratio >= 1:
		return "SSS"
	case ratio >= 0.9:
		return "SS"
	case ratio >= 0.8:
		return "S"
	case ratio >= 0.65:
		return "A"
	case ratio >= 0.5:
		return "B"
	case ratio >= 0.35:
		return "C"
	case ratio >= 0.2:
		return "D"
	default:
		return "E"
	}
}
