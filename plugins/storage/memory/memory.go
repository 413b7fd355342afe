// Package memory implements the "memory" sentinel storage plugin (spec.md
// §6): an in-process, capacity-bounded ring buffer. Like the other built-in
// storages it is resolved by name from the in-process registry, without a
// plugin path lookup.
package memory

import (
	"sort"
	"sync"

	"github.com/solomatovs/gauss/internal/pluginhost"
	"github.com/solomatovs/gauss/internal/record"
	"github.com/solomatovs/gauss/internal/topic"
)

func init() {
	params := []pluginhost.ConfigParam{
		{
			Name:        "capacity",
			Type:        pluginhost.ParamU64,
			Context:     pluginhost.ContextPostmaster,
			Default:     paramPtr(pluginhost.U64Value(100000)),
			Description: "maximum number of records retained per topic before the oldest are evicted",
		},
	}
	pluginhost.RegisterBuiltin(pluginhost.KindTopicStorage, "memory", params, func(cfg pluginhost.ConfigValues) (any, error) {
		return New(int(cfg.Uint64("capacity", 100000))), nil
	})
}

func paramPtr(v pluginhost.ParamValue) *pluginhost.ParamValue { return &v }

// Storage is a ring-buffer backed topic.Storage. Capacity 0 means unbounded.
type Storage struct {
	mu       sync.Mutex
	capacity int
	records  []record.Record
}

// New returns a Storage bounded to capacity records (0 = unbounded).
func New(capacity int) *Storage {
	return &Storage{capacity: capacity}
}

func (s *Storage) Init(schema *record.Schema) error { return nil }

func (s *Storage) Save(records []record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	if s.capacity > 0 && len(s.records) > s.capacity {
		overflow := len(s.records) - s.capacity
		s.records = s.records[overflow:]
	}
	return nil
}

func (s *Storage) Query(q topic.Query) (topic.QueryResult, error) {
	s.mu.Lock()
	matches := make([]record.Record, 0, len(s.records))
	for _, r := range s.records {
		if q.Key != nil && r.Key != *q.Key {
			continue
		}
		if q.FromMs != nil && r.TsMs < *q.FromMs {
			continue
		}
		if q.ToMs != nil && r.TsMs >= *q.ToMs {
			continue
		}
		matches = append(matches, r)
	}
	s.mu.Unlock()

	// Sort ascending (oldest first) so offset/limit select a window on the
	// timeline independent of presentation order; order is applied last.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].TsMs < matches[j].TsMs
	})

	if q.Limit != nil {
		limit := *q.Limit
		offset := 0
		if q.Offset != nil {
			offset = *q.Offset
			if offset < 0 {
				offset = 0
			}
		} else if limit < len(matches) {
			// Limit without offset: the limit most recent matches — take
			// the tail of the ascending timeline regardless of the
			// requested presentation order.
			offset = len(matches) - limit
		}
		end := offset + limit
		if offset > len(matches) {
			offset = len(matches)
		}
		if end > len(matches) {
			end = len(matches)
		}
		matches = matches[offset:end]
	} else if q.Offset != nil {
		offset := *q.Offset
		if offset < 0 {
			offset = 0
		}
		if offset > len(matches) {
			offset = len(matches)
		}
		matches = matches[offset:]
	}

	if q.Order == topic.OrderDesc {
		for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
			matches[i], matches[j] = matches[j], matches[i]
		}
	}

	return topic.QueryResult{Records: matches}, nil
}

func (s *Storage) Flush() error { return nil }
