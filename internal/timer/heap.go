package timer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/smukkama/weather-alarms/internal/alarm"
)

// Wakeup is a pending alarm wake-up
type Wakeup struct {
	AlarmID int64
	FireAt  time.Time
	Payload alarm.Payload
	index   int // index in the heap (for heap.Interface)
}

// wakeupHeap is a min-heap of wake-ups ordered by FireAt
type wakeupHeap []*Wakeup

func (h wakeupHeap) Len() int { return len(h) }

func (h wakeupHeap) Less(i, j int) bool {
	return h[i].FireAt.Before(h[j].FireAt)
}

func (h wakeupHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *wakeupHeap) Push(x interface{}) {
	w := x.(*Wakeup)
	w.index = len(*h)
	*h = append(*h, w)
}

func (h *wakeupHeap) Pop() interface{} {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*h = old[0 : n-1]
	return w
}

// FireFunc receives the payload of a due wake-up. It is called on its own goroutine.
type FireFunc func(alarm.Payload)

// TimerManager holds at most one wake-up per alarm id and fires each one at its time
type TimerManager struct {
	heap    wakeupHeap
	mu      sync.Mutex
	wakeup  chan struct{}
	byID    map[int64]*Wakeup
	onFire  FireFunc
	now     func() time.Time
	stopped bool
	stopCh  chan struct{}
	runWg   sync.WaitGroup
}

// NewTimerManager creates a timer that hands due payloads to onFire
func NewTimerManager(onFire FireFunc) *TimerManager {
	tm := &TimerManager{
		heap:   make(wakeupHeap, 0),
		wakeup: make(chan struct{}, 1),
		byID:   make(map[int64]*Wakeup),
		onFire: onFire,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	heap.Init(&tm.heap)
	return tm
}

// SetFireFunc replaces the fire callback. Must be called before Start.
func (tm *TimerManager) SetFireFunc(onFire FireFunc) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.onFire = onFire
}

// Start starts the scheduler loop
func (tm *TimerManager) Start() {
	tm.runWg.Add(1)
	go tm.run()
}

// Stop stops the scheduler loop. Pending wake-ups are dropped.
func (tm *TimerManager) Stop() {
	tm.mu.Lock()
	if tm.stopped {
		tm.mu.Unlock()
		return
	}
	tm.stopped = true
	close(tm.stopCh)
	tm.mu.Unlock()

	tm.runWg.Wait()
}

// Schedule registers a wake-up for the alarm, replacing any earlier one for the same id
func (tm *TimerManager) Schedule(p alarm.Payload, fireAt time.Time) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.stopped {
		return ErrManagerStopped
	}

	if existing, ok := tm.byID[p.AlarmID]; ok {
		heap.Remove(&tm.heap, existing.index)
		delete(tm.byID, p.AlarmID)
	}

	w := &Wakeup{
		AlarmID: p.AlarmID,
		FireAt:  fireAt,
		Payload: p,
	}

	heap.Push(&tm.heap, w)
	tm.byID[p.AlarmID] = w

	if tm.heap[0] == w {
		select {
		case tm.wakeup <- struct{}{}:
		default:
		}
	}

	return nil
}

// Cancel removes the wake-up for the alarm id. Reports whether one was pending.
func (tm *TimerManager) Cancel(alarmID int64) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	w, ok := tm.byID[alarmID]
	if !ok {
		return false
	}

	heap.Remove(&tm.heap, w.index)
	delete(tm.byID, alarmID)
	return true
}

// Pending returns the fire time of the outstanding wake-up for the alarm id
func (tm *TimerManager) Pending(alarmID int64) (time.Time, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	w, ok := tm.byID[alarmID]
	if !ok {
		return time.Time{}, false
	}
	return w.FireAt, true
}

func (tm *TimerManager) run() {
	defer tm.runWg.Done()

	for {
		tm.mu.Lock()

		if tm.stopped {
			tm.mu.Unlock()
			return
		}

		var waitDuration time.Duration
		if tm.heap.Len() == 0 {
			waitDuration = 24 * time.Hour
		} else {
			next := tm.heap[0]
			waitDuration = next.FireAt.Sub(tm.now())

			if waitDuration <= 0 {
				w := heap.Pop(&tm.heap).(*Wakeup)
				delete(tm.byID, w.AlarmID)
				onFire := tm.onFire
				tm.mu.Unlock()

				if onFire != nil {
					go onFire(w.Payload)
				}
				continue
			}
		}

		tm.mu.Unlock()

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
		case <-tm.wakeup:
			timer.Stop()
		case <-tm.stopCh:
			timer.Stop()
			return
		}
	}
}

// Stats returns statistics about the timer manager
func (tm *TimerManager) Stats() TimerStats {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return TimerStats{
		ScheduledWakeups: len(tm.byID),
	}
}

// TimerStats contains statistics about the timer manager
type TimerStats struct {
	ScheduledWakeups int
}

var (
	ErrManagerStopped = &TimerError{"timer manager is stopped"}
)

// TimerError represents a timer error
type TimerError struct {
	msg string
}

func (e *TimerError) Error() string {
	return e.msg
}
