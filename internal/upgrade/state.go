package upgrade

import (
	"slices"
	"sync"
)

// Phase is what the runner is currently doing.
type Phase string

const (
	PhaseUpgrading  Phase = "upgrading"
	PhaseCleaningUp Phase = "cleaning-up"
	PhaseDone       Phase = "done"
	PhasePaused     Phase = "paused"
)

// CurrentUpgrade describes the work in progress. Type is empty until
// the runner starts.
type CurrentUpgrade struct {
	Type        Phase  `json:"type,omitempty"`
	TableName   string `json:"tableName,omitempty"`
	UpgradeName string `json:"upgradeName,omitempty"`
}

// Snapshot is a point-in-time copy of the runner state.
type Snapshot struct {
	CurrentlyRunningUpgrade CurrentUpgrade      `json:"currentlyRunningUpgrade"`
	RemainingUpgrades       map[string][]string `json:"remainingUpgrades"`
	CompletedUpgrades       map[string][]string `json:"completedUpgrades"`
	RemainingCleanups       map[string][]string `json:"remainingCleanups"`
	DoneCleanups            map[string][]string `json:"doneCleanups"`
}

// State is the runner's progress. The runner is the only writer; any
// goroutine may call Snapshot.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

func newState[S any](tables []Table[S]) *State {
	s := &State{snap: Snapshot{
		RemainingUpgrades: make(map[string][]string, len(tables)),
		CompletedUpgrades: make(map[string][]string, len(tables)),
		RemainingCleanups: make(map[string][]string, len(tables)),
		DoneCleanups:      make(map[string][]string, len(tables)),
	}}
	for _, t := range tables {
		names := make([]string, 0, len(t.Upgrades))
		for _, u := range t.Upgrades {
			names = append(names, u.Name)
		}
		s.snap.RemainingUpgrades[t.Name] = names
		s.snap.CompletedUpgrades[t.Name] = []string{}
		s.snap.RemainingCleanups[t.Name] = append([]string{}, t.Cleanups...)
		s.snap.DoneCleanups[t.Name] = []string{}
	}
	return s
}

// Snapshot returns a deep copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		CurrentlyRunningUpgrade: s.snap.CurrentlyRunningUpgrade,
		RemainingUpgrades:       copyLists(s.snap.RemainingUpgrades),
		CompletedUpgrades:       copyLists(s.snap.CompletedUpgrades),
		RemainingCleanups:       copyLists(s.snap.RemainingCleanups),
		DoneCleanups:            copyLists(s.snap.DoneCleanups),
	}
}

// Current returns the work in progress.
func (s *State) Current() CurrentUpgrade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.CurrentlyRunningUpgrade
}

func (s *State) setCurrent(c CurrentUpgrade) {
	s.mu.Lock()
	s.snap.CurrentlyRunningUpgrade = c
	s.mu.Unlock()
}

func (s *State) completeUpgrade(table, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.RemainingUpgrades[table] = without(s.snap.RemainingUpgrades[table], name)
	s.snap.CompletedUpgrades[table] = append(s.snap.CompletedUpgrades[table], name)
}

func (s *State) completeCleanup(table, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.RemainingCleanups[table] = without(s.snap.RemainingCleanups[table], name)
	s.snap.DoneCleanups[table] = append(s.snap.DoneCleanups[table], name)
}

func (s *State) remainingCleanups(table string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.snap.RemainingCleanups[table])
}

func without(list []string, name string) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

func copyLists(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string{}, v...)
	}
	return out
}
