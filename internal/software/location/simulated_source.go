package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"courier-driver/internal/domain/geo"
)

// SimulatedSource walks a fixed route, producing one fix per tick. It stands in
// for a GPS receiver when the agent runs headless.
type SimulatedSource struct {
	route    []geo.Point
	interval time.Duration
	steps    int // fixes per route segment
	accuracy float64

	mu         sync.Mutex
	permission Permission
	nextID     WatchID
	cancels    map[WatchID]chan struct{}
	wg         sync.WaitGroup
}

var ErrEmptyRoute = errors.New("simulated route needs at least one point")

// NewSimulatedSource walks route with steps fixes per segment, one every interval.
func NewSimulatedSource(route []geo.Point, interval time.Duration, steps int) (*SimulatedSource, error) {
	if len(route) == 0 {
		return nil, ErrEmptyRoute
	}
	if interval <= 0 {
		interval = time.Second
	}
	if steps <= 0 {
		steps = 1
	}
	return &SimulatedSource{
		route:      route,
		interval:   interval,
		steps:      steps,
		accuracy:   8,
		permission: PermissionGranted,
		cancels:    make(map[WatchID]chan struct{}),
	}, nil
}

// SetPermission sets the simulated platform answer. A prompt is granted when
// shown; a denied source fails every watch with a permission error.
func (s *SimulatedSource) SetPermission(p Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permission = p
}

func (s *SimulatedSource) Watch(_ Options, onFix func(geo.Sample), onErr func(*Error)) (WatchID, error) {
	s.mu.Lock()
	if s.permission == PermissionPrompt {
		s.permission = PermissionGranted
	}
	denied := s.permission == PermissionDenied
	s.nextID++
	id := s.nextID
	stop := make(chan struct{})
	s.cancels[id] = stop
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if denied {
			select {
			case <-stop:
			default:
				onErr(NewError(KindPermissionDenied, "simulated permission denied"))
			}
			return
		}
		s.walk(stop, onFix)
	}()
	return id, nil
}

func (s *SimulatedSource) walk(stop <-chan struct{}, onFix func(geo.Sample)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			acc := s.accuracy
			onFix(geo.Sample{Point: s.pointAt(i), AccuracyMeters: &acc, CapturedAt: now.UTC()})
			i++
		}
	}
}

// pointAt returns the i-th fix; the walk holds at the last point once the route ends.
func (s *SimulatedSource) pointAt(i int) geo.Point {
	if len(s.route) == 1 {
		return s.route[0]
	}
	seg := i / s.steps
	if seg >= len(s.route)-1 {
		return s.route[len(s.route)-1]
	}
	frac := float64(i%s.steps) / float64(s.steps)
	return geo.Interpolate(s.route[seg], s.route[seg+1], frac)
}

func (s *SimulatedSource) ClearWatch(id WatchID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.cancels[id]; ok {
		close(stop)
		delete(s.cancels, id)
	}
}

func (s *SimulatedSource) Permission(context.Context) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission, nil
}

func (s *SimulatedSource) RequestPermission(context.Context) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permission == PermissionPrompt {
		s.permission = PermissionGranted
	}
	return s.permission, nil
}

// Close stops every walk and waits for the goroutines.
func (s *SimulatedSource) Close() {
	s.mu.Lock()
	for id, stop := range s.cancels {
		close(stop)
		delete(s.cancels, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
