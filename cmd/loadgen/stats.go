// Switchboard - Multiplexed WebSocket and HTTP API Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/switchboard

package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/switchboard/internal/client"
	"github.com/tomtom215/switchboard/internal/protocol"
)

type stats struct {
	mu         sync.Mutex
	connected  int
	dialFailed int
	closes     map[int]int
	statuses   map[protocol.StatusCode]int
	throttled  int
	timeouts   int
	failures   int
	broadcasts int
	latencies  []time.Duration
}

func newStats() *stats {
	return &stats{
		closes:   make(map[int]int),
		statuses: make(map[protocol.StatusCode]int),
	}
}

func (s *stats) Connected() {
	s.mu.Lock()
	s.connected++
	s.mu.Unlock()
}

func (s *stats) DialFailed() {
	s.mu.Lock()
	s.dialFailed++
	s.mu.Unlock()
}

func (s *stats) Closed(code int) {
	s.mu.Lock()
	s.closes[code]++
	s.mu.Unlock()
}

func (s *stats) Broadcast() {
	s.mu.Lock()
	s.broadcasts++
	s.mu.Unlock()
}

func (s *stats) CallFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if errors.Is(err, client.ErrCallTimeout) {
		s.timeouts++
		return
	}
	s.failures++
}

func (s *stats) Reply(r *client.Reply, latency time.Duration) {
	var data protocol.ErrorData
	if r.StatusCode == protocol.StatusError {
		_ = json.Unmarshal(r.Data, &data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[r.StatusCode]++
	if data.Throttled {
		s.throttled++
	}
	s.latencies = append(s.latencies, latency)
}

// percentile uses the nearest-rank method on a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p/100*float64(len(sorted)) + 0.5)
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func (s *stats) Report(w io.Writer, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := slices.Clone(s.latencies)
	slices.Sort(sorted)

	total := len(sorted)
	fmt.Fprintf(w, "\n--- CONNECTIONS\n\n")
	fmt.Fprintf(w, "Connected:    %d\n", s.connected)
	fmt.Fprintf(w, "Dial failed:  %d\n", s.dialFailed)
	for _, code := range sortedKeys(s.closes) {
		fmt.Fprintf(w, "Closed %d:  %d\n", code, s.closes[code])
	}

	fmt.Fprintf(w, "\n--- CALLS\n\n")
	fmt.Fprintf(w, "Replies:      %d (%.1f/s)\n", total, float64(total)/elapsed.Seconds())
	for _, st := range sortedKeys(s.statuses) {
		fmt.Fprintf(w, "  %-18s %d\n", st.String(), s.statuses[st])
	}
	fmt.Fprintf(w, "Throttled:    %d\n", s.throttled)
	fmt.Fprintf(w, "Timeouts:     %d\n", s.timeouts)
	fmt.Fprintf(w, "Failures:     %d\n", s.failures)
	fmt.Fprintf(w, "Broadcasts:   %d\n", s.broadcasts)

	fmt.Fprintf(w, "\n--- LATENCY\n\n")
	if total == 0 {
		fmt.Fprintf(w, "no replies\n")
		return
	}
	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	fmt.Fprintf(w, "Min:  %v\n", sorted[0])
	fmt.Fprintf(w, "Avg:  %v\n", sum/time.Duration(total))
	fmt.Fprintf(w, "p50:  %v\n", percentile(sorted, 50))
	fmt.Fprintf(w, "p90:  %v\n", percentile(sorted, 90))
	fmt.Fprintf(w, "p99:  %v\n", percentile(sorted, 99))
	fmt.Fprintf(w, "Max:  %v\n", sorted[total-1])
}

func sortedKeys[K int | protocol.StatusCode, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
