package watch

import (
	"strings"
	"time"
)

// Ticker alternates frames once per tick; a frozen frame means the UI loop stalled.
type Ticker struct {
	frames []string
	index  int
}

func NewTicker() Ticker {
	return Ticker{frames: []string{"⟲", "⟳"}}
}

func (t *Ticker) Tick() {
	t.index = (t.index + 1) % len(t.frames)
}

func (t Ticker) Current() string {
	return t.frames[t.index]
}

// Spinner lights five dots on each event and fades one every two seconds.
type Spinner struct {
	dots      int
	lastEvent time.Time
	now       func() time.Time
}

func NewSpinner() Spinner {
	return Spinner{now: time.Now}
}

func (s *Spinner) OnEvent() {
	s.dots = 5
	s.lastEvent = s.now()
}

func (s *Spinner) Decay() {
	if s.dots == 0 {
		return
	}
	elapsed := s.now().Sub(s.lastEvent)
	s.dots = max(0, 5-int(elapsed/(2*time.Second)))
}

func (s Spinner) Render(theme Theme) string {
	var b strings.Builder
	for i := range 5 {
		if i < s.dots {
			b.WriteString(theme.TickerActive.Render("●"))
		} else {
			b.WriteString(theme.TickerInactive.Render("○"))
		}
	}
	return b.String()
}

func (s Spinner) LastEvent() time.Time {
	return s.lastEvent
}
