package anim

import (
	"sync"
	"time"

	"github.com/matchgrid/matchgrid"
)

// RepeatForever makes an animation loop until explicitly stopped.
const RepeatForever = -1

// Values holds the animated property values written for one target
// during one Step. The map is owned by the Timeline and reused across
// ticks; consumers must read it before the next Step.
type Values map[Property]float64

// Animation describes a pending animation. It is copied into a pooled
// internal entry on Add; the caller may reuse the struct afterwards.
type Animation struct {
	// Target is the id of the render object to animate.
	Target string

	// Tracks are the property tracks to drive. At least one is required.
	Tracks []Track

	// Duration is the length of one cycle. A non-positive duration
	// completes on the first tick.
	Duration time.Duration

	// Delay postpones the first cycle.
	Delay time.Duration

	// Repeat is the number of cycles (0 is treated as 1).
	// RepeatForever loops until stopped.
	Repeat int

	// Yoyo reverses direction on odd cycles.
	Yoyo bool

	// OnComplete fires once when the final cycle finishes.
	OnComplete func(target string)
}

// entry is the pooled internal animation record.
type entry struct {
	id       uint64
	target   string
	tracks   []Track
	duration time.Duration
	delay    time.Duration
	repeat   int
	yoyo     bool
	complete func(string)

	started  bool
	start    time.Time
	cycle    int
	progress float64
}

func (e *entry) reset() {
	e.id = 0
	e.target = ""
	e.tracks = e.tracks[:0]
	e.duration = 0
	e.delay = 0
	e.repeat = 0
	e.yoyo = false
	e.complete = nil
	e.started = false
	e.start = time.Time{}
	e.cycle = 0
	e.progress = 0
}

// Timeline advances keyframe animations each tick and produces the
// per-target property values consumed by the render pipeline.
//
// Timeline is single-threaded by design: all methods must be called from
// the frame tick. Entries are pooled and recycled on completion.
type Timeline struct {
	entries []*entry
	byID    map[uint64]*entry
	nextID  uint64

	pool       sync.Pool
	values     map[string]Values
	valuesFree []Values

	// targetCheck reports whether a target id still exists. Entries
	// whose target is gone are dropped silently on the next Step.
	targetCheck func(string) bool
}

// NewTimeline creates an empty animation timeline.
func NewTimeline() *Timeline {
	return &Timeline{
		byID:   make(map[uint64]*entry),
		values: make(map[string]Values),
		pool: sync.Pool{
			New: func() any {
				return &entry{tracks: make([]Track, 0, 4)}
			},
		},
	}
}

// SetTargetCheck installs the existence check used to garbage-collect
// animations whose target was removed. A nil check disables collection.
func (t *Timeline) SetTargetCheck(check func(string) bool) {
	t.targetCheck = check
}

// Add schedules an animation and returns its id for Stop.
// The clock starts on the next Step. Adding an animation for a target
// that no longer exists is a silent no-op collected on the next tick.
func (t *Timeline) Add(a Animation) uint64 {
	e := t.pool.Get().(*entry)
	t.nextID++
	e.id = t.nextID
	e.target = a.Target
	e.tracks = append(e.tracks, a.Tracks...)
	e.duration = a.Duration
	e.delay = a.Delay
	e.repeat = a.Repeat
	if e.repeat == 0 {
		e.repeat = 1
	}
	e.yoyo = a.Yoyo
	e.complete = a.OnComplete

	t.entries = append(t.entries, e)
	t.byID[e.id] = e
	return e.id
}

// Stop cancels an animation by id, recycling its entry.
// Returns false if the id is not active. No completion callback fires.
func (t *Timeline) Stop(id uint64) bool {
	e, ok := t.byID[id]
	if !ok {
		return false
	}
	t.remove(e)
	return true
}

// StopTarget cancels all animations for a target id and returns how many
// were stopped.
func (t *Timeline) StopTarget(target string) int {
	stopped := 0
	for _, e := range t.entries {
		if e != nil && e.target == target {
			t.remove(e)
			stopped++
		}
	}
	return stopped
}

// Active returns the number of animations currently scheduled.
func (t *Timeline) Active() int {
	return len(t.byID)
}

// Progress returns the current progress of an animation in [0,1], or
// false if the id is not active.
func (t *Timeline) Progress(id uint64) (float64, bool) {
	e, ok := t.byID[id]
	if !ok {
		return 0, false
	}
	return e.progress, true
}

// Step advances all animations to the monotonic timestamp now and
// returns interpolated values per target. The returned map is reused on
// the next Step; consume it synchronously.
//
// Within one frame, Step happens-before any layer redraw, so drawing
// always observes already-advanced values.
func (t *Timeline) Step(now time.Time) map[string]Values {
	// Recycle last tick's value maps.
	for target, vals := range t.values {
		clear(vals)
		t.valuesFree = append(t.valuesFree, vals)
		delete(t.values, target)
	}

	// Completion callbacks are deferred until the entry list is
	// compacted: a callback may Add a chained animation, and an append
	// mid-compaction would be thrown away by the slice rebuild below.
	type completion struct {
		fn     func(string)
		target string
	}
	var completed []completion

	kept := t.entries[:0]
	for _, e := range t.entries {
		if e == nil {
			continue
		}
		if t.targetCheck != nil && !t.targetCheck(e.target) {
			// Target vanished: drop silently.
			delete(t.byID, e.id)
			t.recycle(e)
			continue
		}
		if !e.started {
			e.started = true
			e.start = now
		}

		elapsed := now.Sub(e.start) - e.delay
		if elapsed < 0 {
			kept = append(kept, e)
			continue
		}

		p := 1.0
		if e.duration > 0 {
			p = float64(elapsed) / float64(e.duration)
			if p > 1 {
				p = 1
			}
		}
		e.progress = p

		eff := p
		if e.yoyo && e.cycle%2 == 1 {
			eff = 1 - p
		}
		vals := t.valuesFor(e.target)
		for i := range e.tracks {
			tr := &e.tracks[i]
			vals[tr.Property] = tr.valueAt(eff)
		}

		if p < 1 {
			kept = append(kept, e)
			continue
		}

		// Cycle finished.
		e.cycle++
		if e.repeat == RepeatForever || e.cycle < e.repeat {
			e.start = now
			e.delay = 0
			e.progress = 0
			kept = append(kept, e)
			continue
		}

		matchgrid.Logger().Debug("anim: animation complete",
			"target", e.target, "cycles", e.cycle)
		if e.complete != nil {
			completed = append(completed, completion{fn: e.complete, target: e.target})
		}
		delete(t.byID, e.id)
		t.recycle(e)
	}
	// Clear trailing slots so recycled entries are not retained.
	for i := len(kept); i < len(t.entries); i++ {
		t.entries[i] = nil
	}
	t.entries = kept

	for _, c := range completed {
		c.fn(c.target)
	}

	return t.values
}

// valuesFor returns the (reused) value map for a target this tick.
func (t *Timeline) valuesFor(target string) Values {
	if vals, ok := t.values[target]; ok {
		return vals
	}
	var vals Values
	if n := len(t.valuesFree); n > 0 {
		vals = t.valuesFree[n-1]
		t.valuesFree = t.valuesFree[:n-1]
	} else {
		vals = make(Values, 4)
	}
	t.values[target] = vals
	return vals
}

// remove unlinks an entry from both indexes and recycles it.
func (t *Timeline) remove(e *entry) {
	delete(t.byID, e.id)
	for i, cur := range t.entries {
		if cur == e {
			t.entries[i] = nil
			break
		}
	}
	t.recycle(e)
}

func (t *Timeline) recycle(e *entry) {
	e.reset()
	t.pool.Put(e)
}
