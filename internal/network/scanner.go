// Package network expands the officer–entity relationship graph breadth-first
// through the registry gateway, bounded by depth and entity-count limits.
//
// The traversal is cyclic by nature, so it is modelled as an explicit edge
// list plus visited sets keyed by identifier, never as in-memory
// back-references. A single scanner goroutine owns the visited sets and the
// frontier; batch workers submit discovered officer lists through a queue
// rather than mutating shared state, which preserves the first-discovery-wins
// depth invariant: an entity's recorded depth is the depth at which it was
// first discovered and is never revised, even if a shorter path shows up
// later in the same wave.
package network

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/signal-watch/signalwatch/internal/gateway"
	"github.com/signal-watch/signalwatch/internal/model"
)

// Options bounds an expansion.
type Options struct {
	// MaxDepth is the deepest discovery level. 0 disables expansion
	// entirely: no officer fetches happen at all.
	MaxDepth int

	// MaxEntities caps the total number of visited entities, seeds
	// included. Reaching it truncates remaining work; truncation is
	// reported, not an error.
	MaxEntities int

	// ActiveOnly restricts traversal to active appointments.
	ActiveOnly bool
}

// Snapshot captures the scanner's restartable state for checkpointing.
type Snapshot struct {
	Visited   map[string]int // entity number -> discovery depth
	Officers  []string
	Edges     []model.NetworkEdge
	Truncated bool
}

// Discovery is an entity first reached during expansion, to be queued as a
// new scan job by the batch processor.
type Discovery struct {
	EntityNumber string
	Depth        int
}

type submission struct {
	entityNumber string
	officers     []model.Officer
	flush        chan struct{} // non-nil for flush sentinels
}

// Scanner owns the officer–entity traversal state. Start launches the single
// writer goroutine; Submit feeds it; Flush synchronizes with it.
type Scanner struct {
	source gateway.RegistrySource
	opts   Options

	submissions chan submission

	mu              sync.Mutex
	visitedEntities map[string]int
	visitedOfficers map[string]bool
	edgeKeys        map[model.EdgeKey]bool
	edges           []model.NetworkEdge
	discoveries     []Discovery
	truncated       bool

	done chan struct{}
}

// NewScanner creates a Scanner over the gateway-backed source.
func NewScanner(source gateway.RegistrySource, opts Options) *Scanner {
	if opts.MaxEntities <= 0 {
		opts.MaxEntities = 500
	}
	return &Scanner{
		source:          source,
		opts:            opts,
		submissions:     make(chan submission, 64),
		visitedEntities: make(map[string]int),
		visitedOfficers: make(map[string]bool),
		edgeKeys:        make(map[model.EdgeKey]bool),
		done:            make(chan struct{}),
	}
}

// Seed marks the initial entities as visited at depth 0. Seeds count toward
// MaxEntities.
func (s *Scanner) Seed(numbers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range numbers {
		if _, ok := s.visitedEntities[n]; !ok {
			s.visitedEntities[n] = 0
		}
	}
}

// Restore loads a checkpointed snapshot. Previously recorded depths are kept
// verbatim; re-running expansion over restored state never changes them.
func (s *Scanner) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n, d := range snap.Visited {
		s.visitedEntities[n] = d
	}
	for _, o := range snap.Officers {
		s.visitedOfficers[o] = true
	}
	for _, e := range snap.Edges {
		if !s.edgeKeys[e.Key()] {
			s.edgeKeys[e.Key()] = true
			s.edges = append(s.edges, e)
		}
	}
	s.truncated = s.truncated || snap.Truncated
}

// Start launches the scanner goroutine. It runs until Close is called or ctx
// is cancelled.
func (s *Scanner) Start(ctx context.Context) {
	go s.run(ctx)
}

// Submit hands one processed entity's officer list to the scanner. It blocks
// only if the submission queue is full.
func (s *Scanner) Submit(ctx context.Context, entityNumber string, officers []model.Officer) error {
	select {
	case s.submissions <- submission{entityNumber: entityNumber, officers: officers}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	}
}

// Flush blocks until every submission queued before it has been fully
// processed, including appointment fetches. Batch waves call this before
// collecting discoveries.
func (s *Scanner) Flush(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case s.submissions <- submission{flush: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	}
}

// Close stops the scanner goroutine. Pending submissions are dropped.
func (s *Scanner) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// TakeDiscoveries returns entities discovered since the last call and clears
// the list.
func (s *Scanner) TakeDiscoveries() []Discovery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.discoveries
	s.discoveries = nil
	return out
}

// Edges returns all recorded edges sorted by depth, then officer, then entity.
func (s *Scanner) Edges() []model.NetworkEdge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.NetworkEdge, len(s.edges))
	copy(out, s.edges)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if a.OfficerID != b.OfficerID {
			return a.OfficerID < b.OfficerID
		}
		return a.EntityNumber < b.EntityNumber
	})
	return out
}

// Truncated reports whether MaxEntities cut the expansion short.
func (s *Scanner) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncated
}

// Snapshot captures restartable state for the next checkpoint.
func (s *Scanner) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Visited:   make(map[string]int, len(s.visitedEntities)),
		Officers:  make([]string, 0, len(s.visitedOfficers)),
		Edges:     make([]model.NetworkEdge, len(s.edges)),
		Truncated: s.truncated,
	}
	for n, d := range s.visitedEntities {
		snap.Visited[n] = d
	}
	for o := range s.visitedOfficers {
		snap.Officers = append(snap.Officers, o)
	}
	sort.Strings(snap.Officers)
	copy(snap.Edges, s.edges)
	return snap
}

func (s *Scanner) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case sub := <-s.submissions:
			if sub.flush != nil {
				close(sub.flush)
				continue
			}
			s.expand(ctx, sub)
		}
	}
}

// expand processes one entity's officer list: records the direct edges, then
// walks each unvisited officer's other appointments one level deeper.
func (s *Scanner) expand(ctx context.Context, sub submission) {
	log := zap.L().With(zap.String("company", sub.entityNumber))

	s.mu.Lock()
	depth, known := s.visitedEntities[sub.entityNumber]
	s.mu.Unlock()
	if !known {
		// Submissions only come from entities the batch is processing, which
		// are always visited first. An unknown entity indicates a caller bug.
		log.Warn("network: submission for unvisited entity, ignoring")
		return
	}

	for _, officer := range sub.officers {
		if ctx.Err() != nil {
			return
		}
		if s.opts.ActiveOnly && !hasActiveAppointment(officer, sub.entityNumber) {
			continue
		}

		key := officerKey(officer)
		s.recordEdge(model.NetworkEdge{
			OfficerID:    officer.ID,
			OfficerName:  officer.Name,
			EntityNumber: sub.entityNumber,
			EntityName:   "",
			Role:         roleAt(officer, sub.entityNumber),
			Depth:        depth,
			DiscoveredAt: time.Now().UTC(),
		})

		s.mu.Lock()
		seen := s.visitedOfficers[key]
		if !seen {
			s.visitedOfficers[key] = true
		}
		s.mu.Unlock()
		if seen {
			continue
		}

		// Officers without a registry identifier (pre-digital records) have
		// no appointments endpoint to follow.
		if officer.ID == "" || depth+1 > s.opts.MaxDepth {
			continue
		}

		s.followAppointments(ctx, officer, depth+1, log)
	}
}

func (s *Scanner) followAppointments(ctx context.Context, officer model.Officer, depth int, log *zap.Logger) {
	s.mu.Lock()
	truncated := s.truncated
	s.mu.Unlock()
	if truncated {
		return
	}

	apps, err := s.source.GetOfficerAppointments(ctx, officer.ID)
	if err != nil {
		// Expansion failures are isolated to the officer: the batch keeps
		// running and the edge to the submitting entity is already recorded.
		log.Warn("network: appointments fetch failed",
			zap.String("officer_id", officer.ID),
			zap.Error(err),
		)
		return
	}

	for _, app := range apps {
		if app.EntityNumber == "" {
			continue
		}
		if s.opts.ActiveOnly && !app.Active {
			continue
		}

		s.mu.Lock()
		existingDepth, visited := s.visitedEntities[app.EntityNumber]
		if visited {
			// First-discovery-wins: keep the recorded depth.
			s.mu.Unlock()
			s.recordEdge(model.NetworkEdge{
				OfficerID:    officer.ID,
				OfficerName:  officer.Name,
				EntityNumber: app.EntityNumber,
				Role:         app.Role,
				Depth:        existingDepth,
				DiscoveredAt: time.Now().UTC(),
			})
			continue
		}
		if len(s.visitedEntities) >= s.opts.MaxEntities {
			s.truncated = true
			s.mu.Unlock()
			log.Info("network: entity limit reached, truncating expansion",
				zap.Int("max_entities", s.opts.MaxEntities),
			)
			return
		}
		s.visitedEntities[app.EntityNumber] = depth
		s.discoveries = append(s.discoveries, Discovery{EntityNumber: app.EntityNumber, Depth: depth})
		s.mu.Unlock()

		s.recordEdge(model.NetworkEdge{
			OfficerID:    officer.ID,
			OfficerName:  officer.Name,
			EntityNumber: app.EntityNumber,
			Role:         app.Role,
			Depth:        depth,
			DiscoveredAt: time.Now().UTC(),
		})
	}
}

// recordEdge appends an edge unless its (officer, entity) pair is already
// recorded; an edge discovered at a shallower depth is never re-recorded.
func (s *Scanner) recordEdge(edge model.NetworkEdge) {
	if edge.OfficerID == "" {
		edge.OfficerID = "name:" + edge.OfficerName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.edgeKeys[edge.Key()] {
		return
	}
	s.edgeKeys[edge.Key()] = true
	s.edges = append(s.edges, edge)
}

func officerKey(o model.Officer) string {
	if o.ID != "" {
		return o.ID
	}
	return "name:" + o.Name
}

func hasActiveAppointment(o model.Officer, entityNumber string) bool {
	for _, a := range o.Appointments {
		if a.EntityNumber == entityNumber && a.Active {
			return true
		}
	}
	return false
}

func roleAt(o model.Officer, entityNumber string) string {
	for _, a := range o.Appointments {
		if a.EntityNumber == entityNumber {
			return a.Role
		}
	}
	return ""
}
