package instance

import (
	"fmt"
	"log/slog"
	"sync"
)

// Manager creates, starts, stops and deletes instances (spec §4.6
// "Operations"), generalizing the teacher's PipelineManager from a single
// global pipeline into a registry of many. CreateInstance, DeleteInstance
// and ToggleStateAllInstances run entirely under the Manager's lock;
// StartInstance and StopInstance only look the instance up under it and
// then start or stop it outside the lock, so they are not serialized
// against each other or against the other operations.
type Manager struct {
	mu        sync.Mutex
	instances map[int]*Instance
	log       *slog.Logger
	paused    bool

	zeroReady     chan struct{}
	zeroReadyOnce sync.Once
}

// NewManager returns an empty instance registry.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{instances: make(map[int]*Instance), log: log, zeroReady: make(chan struct{})}
}

// CreateInstance registers a new, unstarted instance built from cfg (spec
// §4.6 "createInstance(name)"). Creation order is unconstrained; only
// starting is ordered (spec §4.6 "Startup order").
func (m *Manager) CreateInstance(cfg Config) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.instances[cfg.Index]; exists {
		return nil, fmt.Errorf("instance: index %d already exists", cfg.Index)
	}

	cfg.Log = m.log
	in, err := New(cfg)
	if err != nil {
		return nil, err
	}
	m.instances[cfg.Index] = in
	return in, nil
}

// DeleteInstance stops (if running) and removes instance i (spec §4.6
// "deleteInstance(i)").
func (m *Manager) DeleteInstance(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.instances[i]
	if !ok {
		return fmt.Errorf("instance: no instance %d", i)
	}
	in.Stop()
	delete(m.instances, i)
	return nil
}

// StartInstance starts instance i (spec §4.6 "startInstance(i,
// disableOnStartup)"). Starting any instance other than 0 blocks until
// instance 0 has been started (spec §4.6 "Startup order": "Instance 0
// starts first ... other instances may start concurrently once 0 reports
// ready").
func (m *Manager) StartInstance(i int, disableOnStartup bool) error {
	m.mu.Lock()
	in, ok := m.instances[i]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("instance: no instance %d", i)
	}

	if i != 0 {
		<-m.zeroReady
	}
	in.Start(disableOnStartup)
	if i == 0 {
		m.zeroReadyOnce.Do(func() { close(m.zeroReady) })
	}
	return nil
}

// StopInstance stops instance i without removing its registration (spec
// §4.6 "stopInstance(i)").
func (m *Manager) StopInstance(i int) error {
	m.mu.Lock()
	in, ok := m.instances[i]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("instance: no instance %d", i)
	}
	in.Stop()
	return nil
}

// ToggleStateAllInstances pauses or resumes every registered instance's LED
// output (spec §4.6 "toggleStateAllInstances(pause)").
func (m *Manager) ToggleStateAllInstances(pause bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = pause
	for _, in := range m.instances {
		in.components.SetEnabled(LEDDEVICE, !pause)
	}
}

// Hibernate quiesces (wakeUp=false) or restores (wakeUp=true) every instance
// in response to an OS sleep/wake event (spec §4.6 "hibernate(wakeUp,
// source)").
func (m *Manager) Hibernate(wakeUp bool, source string) {
	m.log.Info("hibernate", "wakeUp", wakeUp, "source", source)
	m.ToggleStateAllInstances(!wakeUp)
}

// Get returns the instance registered at i, if any.
func (m *Manager) Get(i int) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.instances[i]
	return in, ok
}

// Indices returns every registered instance index, ascending.
func (m *Manager) Indices() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, 0, len(m.instances))
	for i := range m.instances {
		out = append(out, i)
	}
	for a := 1; a < len(out); a++ {
		for b := a; b > 0 && out[b-1] > out[b]; b-- {
			out[b-1], out[b] = out[b], out[b-1]
		}
	}
	return out
}
