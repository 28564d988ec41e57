package publisher

import (
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/stadtaev/beatstatus/internal/status"
)

type recordingSink struct {
	mu       sync.Mutex
	retained []status.Envelope
	sent     []status.Envelope
}

func (r *recordingSink) Retain(env status.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retained = append(r.retained, env)
}

func (r *recordingSink) Broadcast(env status.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, env)
}

func (r *recordingSink) last(t *testing.T) status.Envelope {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("nothing broadcast")
	}
	return r.sent[len(r.sent)-1]
}

var testStart = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func newTestPublisher(t *testing.T, opts Options) (*Publisher, *recordingSink, *clockwork.FakeClock) {
	t.Helper()
	sink := &recordingSink{}
	clock := clockwork.NewFakeClockAt(testStart)
	p, err := New(sink, slog.New(slog.NewTextHandler(io.Discard, nil)), clock, opts)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	return p, sink, clock
}

func decodeStatus(t *testing.T, env status.Envelope) map[string]map[string]any {
	t.Helper()
	var doc map[string]map[string]any
	if err := json.Unmarshal(env.Status, &doc); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	return doc
}

func fieldCount(doc map[string]map[string]any) int {
	n := 0
	for _, group := range doc {
		n += len(group)
	}
	return n
}

func TestNewRetainsDefaultSnapshot(t *testing.T) {
	_, sink, _ := newTestPublisher(t, Options{PluginVersion: "1.0.0"})

	if len(sink.retained) != 1 {
		t.Fatalf("retained = %d, want 1", len(sink.retained))
	}
	if len(sink.sent) != 0 {
		t.Errorf("sent = %d, want 0", len(sink.sent))
	}

	env := sink.retained[0]
	if env.Event != status.EventHello || env.Changed != status.ChangedAll {
		t.Errorf("envelope = %s/%s", env.Event, env.Changed)
	}
	if env.Time != testStart.UnixMilli() {
		t.Errorf("time = %d, want %d", env.Time, testStart.UnixMilli())
	}

	doc := decodeStatus(t, env)
	if doc["game"]["scene"] != "Menu" {
		t.Errorf("scene = %v", doc["game"]["scene"])
	}
	if v, ok := doc["beatmap"]["songCover"]; !ok || v != nil {
		t.Errorf("songCover = %v (present %v), want explicit null", v, ok)
	}
	stats, ok := doc["beatmap"]["levelStats"].([]any)
	if !ok || len(stats) != status.DifficultyCount {
		t.Fatalf("levelStats = %v", doc["beatmap"]["levelStats"])
	}
	for i, s := range stats {
		if s != nil {
			t.Errorf("levelStats[%d] = %v, want null", i, s)
		}
	}
}

func TestDefaultDocumentHasSameShapeAsSession(t *testing.T) {
	p, sink, _ := newTestPublisher(t, Options{EmbedCover: true})
	before := fieldCount(decodeStatus(t, sink.retained[0]))

	s := p.Status()
	s.Game.Scene = status.SceneSong
	s.Beatmap.SongName = "Crystallized"
	s.Beatmap.SongCover = []byte{0x89, 'P', 'N', 'G'}
	s.Beatmap.SongHash = "0123456789ABCDEF0123456789ABCDEF01234567"
	s.Beatmap.LevelStats[status.Hard] = &status.LevelStats{HighScore: 900000, PlayCount: 3}
	s.SetNoteCut(status.Note{ID: 3, Type: "NoteB"}, &status.CutDetail{SpeedOK: true, SaberType: "SaberB"})
	if err := p.EmitStatusUpdate(status.ChangedAll, status.EventSongStart); err != nil {
		t.Fatalf("emit: %v", err)
	}

	doc := decodeStatus(t, sink.last(t))
	if after := fieldCount(doc); after != before {
		t.Errorf("field count = %d after session, %d before", after, before)
	}
	if doc["beatmap"]["songCover"] != "iVBORw==" {
		t.Errorf("songCover = %v", doc["beatmap"]["songCover"])
	}

	stats := doc["beatmap"]["levelStats"].([]any)
	if stats[status.Easy] != nil || stats[status.Hard] == nil {
		t.Errorf("levelStats = %v, want only Hard populated", stats)
	}
}

func TestCoverNotEmbedded(t *testing.T) {
	p, sink, _ := newTestPublisher(t, Options{EmbedCover: false})
	p.Status().Beatmap.SongCover = []byte("cover")

	if err := p.Emit(status.EventSongStart); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if v := decodeStatus(t, sink.last(t))["beatmap"]["songCover"]; v != nil {
		t.Errorf("songCover = %v, want null", v)
	}
}

func TestFinalScoreSentinelUntilResolved(t *testing.T) {
	p, sink, _ := newTestPublisher(t, Options{})
	s := p.Status()

	note := status.Note{ID: 12, Type: "NoteA", CutDirection: "Down"}
	s.SetNoteCut(note, &status.CutDetail{SpeedOK: true, DirectionOK: true, SaberTypeOK: true})
	s.NoteCut.InitialScore = 85
	s.NoteCut.FinalScore = status.ScorePending
	token := p.Cuts().Track(note)
	if err := p.Emit(status.EventNoteCut); err != nil {
		t.Fatalf("emit noteCut: %v", err)
	}

	cut := decodeStatus(t, sink.last(t))["noteCut"]
	if cut["finalScore"] != float64(-1) {
		t.Errorf("finalScore after noteCut = %v, want -1", cut["finalScore"])
	}
	if sink.last(t).Changed != status.ChangedPerformanceAndNoteCut {
		t.Errorf("changed = %s", sink.last(t).Changed)
	}

	resolved, ok := p.Cuts().Resolve(token)
	if !ok {
		t.Fatal("token not pending")
	}
	s.SetNoteCut(resolved, &status.CutDetail{SpeedOK: true})
	s.NoteCut.InitialScore = 85
	s.NoteCut.FinalScore = 0
	if err := p.Emit(status.EventNoteFullyCut); err != nil {
		t.Fatalf("emit noteFullyCut: %v", err)
	}

	cut = decodeStatus(t, sink.last(t))["noteCut"]
	if cut["finalScore"] != float64(0) {
		t.Errorf("finalScore after noteFullyCut = %v, want 0", cut["finalScore"])
	}
	if cut["noteID"] != float64(12) {
		t.Errorf("noteID = %v, want 12", cut["noteID"])
	}
}

func TestMissRendersNullCutDetail(t *testing.T) {
	p, sink, _ := newTestPublisher(t, Options{})
	p.Status().SetNoteCut(status.Note{ID: 4, Type: "Bomb"}, nil)

	if err := p.Emit(status.EventBombMissed); err != nil {
		t.Fatalf("emit: %v", err)
	}

	cut := decodeStatus(t, sink.last(t))["noteCut"]
	for _, key := range []string{"speedOK", "saberDir", "saberType", "cutPoint", "cutDistanceToCenter"} {
		v, ok := cut[key]
		if !ok {
			t.Errorf("%s missing", key)
			continue
		}
		if v != nil {
			t.Errorf("%s = %v, want null", key, v)
		}
	}
}

func TestNonFiniteFloatsRenderNull(t *testing.T) {
	p, sink, _ := newTestPublisher(t, Options{})
	p.Status().Performance.MultiplierProgress = math.NaN()
	p.Status().Beatmap.SongBPM = math.Inf(1)

	if err := p.Emit(status.EventScoreChanged); err != nil {
		t.Fatalf("emit: %v", err)
	}

	doc := decodeStatus(t, sink.last(t))
	if v := doc["performance"]["multiplierProgress"]; v != nil {
		t.Errorf("multiplierProgress = %v, want null", v)
	}
	if v := doc["beatmap"]["songBPM"]; v != nil {
		t.Errorf("songBPM = %v, want null", v)
	}
}

func TestEmitCarriesFullDocument(t *testing.T) {
	p, sink, clock := newTestPublisher(t, Options{})
	p.Status().Beatmap.SongName = "Escape"
	p.Status().Performance.Score = 4200

	clock.Advance(1500 * time.Millisecond)
	if err := p.Emit(status.EventBeatmapEvent); err != nil {
		t.Fatalf("emit: %v", err)
	}

	env := sink.last(t)
	if env.Time != testStart.Add(1500*time.Millisecond).UnixMilli() {
		t.Errorf("time = %d", env.Time)
	}
	doc := decodeStatus(t, env)
	if doc["beatmap"]["songName"] != "Escape" || doc["performance"]["score"] != float64(4200) {
		t.Errorf("groups outside the change set missing from payload: %v", doc)
	}
}

func TestEmitUnknownEvent(t *testing.T) {
	p, sink, _ := newTestPublisher(t, Options{})

	if err := p.Emit("levelSelected"); err == nil {
		t.Error("expected error for unknown event")
	}
	if len(sink.sent) != 0 {
		t.Errorf("sent = %d, want 0", len(sink.sent))
	}
}

func TestResetPerformanceLeavesBeatmap(t *testing.T) {
	p, sink, _ := newTestPublisher(t, Options{})
	s := p.Status()
	s.Beatmap.SongName = "Ghost"
	s.Beatmap.Difficulty = "Expert"
	s.Performance.Score = 777
	s.Performance.Combo = 31
	s.Performance.HitNotes = 31

	p.ResetPerformance()
	if err := p.Emit(status.EventSongStart); err != nil {
		t.Fatalf("emit: %v", err)
	}

	doc := decodeStatus(t, sink.last(t))
	perf := doc["performance"]
	if perf["score"] != float64(0) || perf["combo"] != float64(0) || perf["hitNotes"] != float64(0) {
		t.Errorf("performance not zeroed: %v", perf)
	}
	if perf["multiplier"] != float64(1) {
		t.Errorf("multiplier = %v, want 1", perf["multiplier"])
	}
	if doc["beatmap"]["songName"] != "Ghost" || doc["beatmap"]["difficulty"] != "Expert" {
		t.Errorf("beatmap changed: %v", doc["beatmap"])
	}
}
