package location

import (
	"context"
	"sync"

	"courier-driver/internal/domain/geo"
)

// ManualSource is a Source driven by hand: Emit and Fail push to every active
// watch. A primed fix or error is delivered from inside Watch, the way a
// platform answers from its position cache.
type ManualSource struct {
	mu         sync.Mutex
	nextID     WatchID
	watches    map[WatchID]manualWatch
	permission Permission
	onRequest  Permission // answer given when a prompt is shown
	requests   int
	primedFix  *geo.Sample
	primedErr  *Error
}

type manualWatch struct {
	opts  Options
	onFix func(geo.Sample)
	onErr func(*Error)
}

func NewManualSource() *ManualSource {
	return &ManualSource{
		watches:    make(map[WatchID]manualWatch),
		permission: PermissionGranted,
		onRequest:  PermissionGranted,
	}
}

// SetPermission sets the current answer and the answer a prompt will produce.
func (m *ManualSource) SetPermission(current, onPrompt Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permission = current
	m.onRequest = onPrompt
}

// Prime makes the next Watch call deliver s, then e, before returning.
// Either may be nil.
func (m *ManualSource) Prime(s *geo.Sample, e *Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primedFix = s
	m.primedErr = e
}

func (m *ManualSource) Watch(opts Options, onFix func(geo.Sample), onErr func(*Error)) (WatchID, error) {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.watches[id] = manualWatch{opts: opts, onFix: onFix, onErr: onErr}
	fix, fail := m.primedFix, m.primedErr
	m.primedFix, m.primedErr = nil, nil
	m.mu.Unlock()

	if fix != nil {
		onFix(*fix)
	}
	if fail != nil {
		onErr(fail)
	}
	return id, nil
}

func (m *ManualSource) ClearWatch(id WatchID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watches, id)
}

func (m *ManualSource) Permission(context.Context) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permission, nil
}

func (m *ManualSource) RequestPermission(context.Context) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if m.permission == PermissionPrompt {
		m.permission = m.onRequest
	}
	return m.permission, nil
}

// Emit delivers s to every active watch. It returns the number of watches reached.
func (m *ManualSource) Emit(s geo.Sample) int {
	ws := m.snapshot()
	for _, w := range ws {
		w.onFix(s)
	}
	return len(ws)
}

// Fail delivers err to every active watch.
func (m *ManualSource) Fail(err *Error) int {
	ws := m.snapshot()
	for _, w := range ws {
		w.onErr(err)
	}
	return len(ws)
}

// Active is the number of open watches.
func (m *ManualSource) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches)
}

// LastOptions returns the options of the most recent open watch.
func (m *ManualSource) LastOptions() (Options, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watches[m.nextID]
	return w.opts, ok
}

// Prompts counts RequestPermission calls.
func (m *ManualSource) Prompts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

func (m *ManualSource) snapshot() []manualWatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]manualWatch, 0, len(m.watches))
	for _, w := range m.watches {
		out = append(out, w)
	}
	return out
}
