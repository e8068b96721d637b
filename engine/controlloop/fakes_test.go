package controlloop

import (
	"context"
	"errors"
	"sync"
)

type fakeMetrics struct {
	mu    sync.Mutex
	rates map[string]float64
	err   error
}

func (f *fakeMetrics) RequestRate(_ context.Context, service string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.rates[service], nil
}

func (f *fakeMetrics) set(service string, rate float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rates[service] = rate
}

// fakeDeployments serves replica counts and records scale calls. The first
// failures calls to Replicas return an error.
type fakeDeployments struct {
	mu       sync.Mutex
	replicas map[string]int
	cpu      map[string]float64
	failures int
	reads    int
	scaled   []scaleCall
	scaleErr error
}

type scaleCall struct {
	Service  string
	Replicas int
}

func (f *fakeDeployments) Replicas(_ context.Context, service string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.reads <= f.failures {
		return 0, errors.New("deployment not found")
	}
	return f.replicas[service], nil
}

func (f *fakeDeployments) CPULimit(_ context.Context, service string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cpu[service], nil
}

func (f *fakeDeployments) Scale(_ context.Context, service string, replicas int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scaleErr != nil {
		return f.scaleErr
	}
	f.scaled = append(f.scaled, scaleCall{Service: service, Replicas: replicas})
	f.replicas[service] = replicas
	return nil
}

func (f *fakeDeployments) calls() []scaleCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scaleCall(nil), f.scaled...)
}

type fakeTrigger struct {
	mu     sync.Mutex
	graphs []string
	err    error
}

func (f *fakeTrigger) RequestReplacement(_ context.Context, graph string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graphs = append(f.graphs, graph)
	return f.err
}

func (f *fakeTrigger) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.graphs...)
}
