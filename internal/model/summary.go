package model

import (
	"sort"
	"time"
)

// Summary aggregates collected events for reporting.
type Summary struct {
	GeneratedAt time.Time `json:"generated_at"`
	TotalEvents int       `json:"total_events"`

	// EventCounts maps event name to number of hits.
	EventCounts map[string]int `json:"event_counts"`

	Clients  int              `json:"clients"`
	Sessions []SessionSummary `json:"sessions"`

	// EngagementSeconds is the sum of engagement reported by all sessions.
	EngagementSeconds int `json:"engagement_seconds"`
}

// SessionSummary describes one tracked session.
type SessionSummary struct {
	SessionID         string    `json:"session_id"`
	ClientID          string    `json:"client_id"`
	Provider          Provider  `json:"provider"`
	Events            int       `json:"events"`
	EngagementSeconds int       `json:"engagement_seconds"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
	Pages             []string  `json:"pages,omitempty"`
}

// EventNames returns the event names of the summary sorted by count,
// most frequent first and ties broken alphabetically.
func (s *Summary) EventNames() []string {
	names := make([]string, 0, len(s.EventCounts))
	for name := range s.EventCounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := s.EventCounts[names[i]], s.EventCounts[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	return names
}

// Summarize builds a Summary from events in any order.
func Summarize(events []Event, now time.Time) *Summary {
	s := &Summary{
		GeneratedAt: now,
		EventCounts: make(map[string]int),
	}

	clients := make(map[string]bool)
	sessions := make(map[string]*SessionSummary)
	var order []string

	for _, ev := range events {
		s.TotalEvents++
		name := ev.Name
		if name == "" {
			name = "(unnamed)"
		}
		s.EventCounts[name]++
		if ev.ClientID != "" {
			clients[ev.ClientID] = true
		}

		key := ev.ClientID + "/" + ev.SessionID
		ss, ok := sessions[key]
		if !ok {
			ss = &SessionSummary{
				SessionID: ev.SessionID,
				ClientID:  ev.ClientID,
				Provider:  ev.Provider,
				FirstSeen: ev.ReceivedAt,
				LastSeen:  ev.ReceivedAt,
			}
			sessions[key] = ss
			order = append(order, key)
		}
		ss.Events++
		// Engagement is cumulative per page load, so the flush carries the total.
		if ev.Name == EventUserEngagement {
			ss.EngagementSeconds += ev.EngagementSeconds
			s.EngagementSeconds += ev.EngagementSeconds
		}
		if ev.ReceivedAt.Before(ss.FirstSeen) {
			ss.FirstSeen = ev.ReceivedAt
		}
		if ev.ReceivedAt.After(ss.LastSeen) {
			ss.LastSeen = ev.ReceivedAt
		}
		if ev.Name == EventPageView && ev.Location != "" && !contains(ss.Pages, ev.Location) {
			ss.Pages = append(ss.Pages, ev.Location)
		}
	}

	s.Clients = len(clients)
	for _, key := range order {
		s.Sessions = append(s.Sessions, *sessions[key])
	}
	sort.SliceStable(s.Sessions, func(i, j int) bool {
		return s.Sessions[i].FirstSeen.Before(s.Sessions[j].FirstSeen)
	})
	return s
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
