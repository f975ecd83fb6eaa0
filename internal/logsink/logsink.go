// Package logsink is the log facade described in spec.md §6: a narrow
// interface between the membership/DHT business logic and wherever
// events end up. Business logic never formats strings or talks to
// stdout directly; it calls one of these ten methods.
package logsink

import (
	"fmt"
	"log"

	"kvstore/internal/wire"
)

// Op names one of the four DHT operations, used by the per-op success/
// fail log calls.
type Op string

const (
	OpCreate Op = "create"
	OpRead   Op = "read"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is the structured record every Sink call produces. MemorySink
// keeps these around for test assertions; StdSink only ever formats one
// and throws it away.
type Event struct {
	Kind          string // "node_added", "node_removed", or "<op>_<success|fail>"
	Observer      wire.Address
	Other         wire.Address // the added/removed node, zero value for op events
	IsCoordinator bool
	TransID       int32
	Key           string
	Value         string
}

// Sink is the ten-event log facade: membership add/remove plus
// success/fail for each of the four DHT operations.
type Sink interface {
	LogNodeAdded(observer, added wire.Address)
	LogNodeRemoved(observer, removed wire.Address)

	LogCreateSuccess(observer wire.Address, isCoordinator bool, transID int32, key, value string)
	LogCreateFail(observer wire.Address, isCoordinator bool, transID int32, key, value string)
	LogReadSuccess(observer wire.Address, isCoordinator bool, transID int32, key, value string)
	LogReadFail(observer wire.Address, isCoordinator bool, transID int32, key string)
	LogUpdateSuccess(observer wire.Address, isCoordinator bool, transID int32, key, value string)
	LogUpdateFail(observer wire.Address, isCoordinator bool, transID int32, key, value string)
	LogDeleteSuccess(observer wire.Address, isCoordinator bool, transID int32, key string)
	LogDeleteFail(observer wire.Address, isCoordinator bool, transID int32, key string)
}

// MemorySink accumulates Events in order, for test assertions. It is not
// safe for concurrent use, matching the single-threaded tick model the
// rest of the protocol core assumes.
type MemorySink struct {
	Events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) LogNodeAdded(observer, added wire.Address) {
	s.Events = append(s.Events, Event{Kind: "node_added", Observer: observer, Other: added})
}

func (s *MemorySink) LogNodeRemoved(observer, removed wire.Address) {
	s.Events = append(s.Events, Event{Kind: "node_removed", Observer: observer, Other: removed})
}

func (s *MemorySink) LogCreateSuccess(observer wire.Address, isCoordinator bool, transID int32, key, value string) {
	s.record("create_success", observer, isCoordinator, transID, key, value)
}

func (s *MemorySink) LogCreateFail(observer wire.Address, isCoordinator bool, transID int32, key, value string) {
	s.record("create_fail", observer, isCoordinator, transID, key, value)
}

func (s *MemorySink) LogReadSuccess(observer wire.Address, isCoordinator bool, transID int32, key, value string) {
	s.record("read_success", observer, isCoordinator, transID, key, value)
}

func (s *MemorySink) LogReadFail(observer wire.Address, isCoordinator bool, transID int32, key string) {
	s.record("read_fail", observer, isCoordinator, transID, key, "")
}

func (s *MemorySink) LogUpdateSuccess(observer wire.Address, isCoordinator bool, transID int32, key, value string) {
	s.record("update_success", observer, isCoordinator, transID, key, value)
}

func (s *MemorySink) LogUpdateFail(observer wire.Address, isCoordinator bool, transID int32, key, value string) {
	s.record("update_fail", observer, isCoordinator, transID, key, value)
}

func (s *MemorySink) LogDeleteSuccess(observer wire.Address, isCoordinator bool, transID int32, key string) {
	s.record("delete_success", observer, isCoordinator, transID, key, "")
}

func (s *MemorySink) LogDeleteFail(observer wire.Address, isCoordinator bool, transID int32, key string) {
	s.record("delete_fail", observer, isCoordinator, transID, key, "")
}

func (s *MemorySink) record(kind string, observer wire.Address, isCoordinator bool, transID int32, key, value string) {
	s.Events = append(s.Events, Event{
		Kind:          kind,
		Observer:      observer,
		IsCoordinator: isCoordinator,
		TransID:       transID,
		Key:           key,
		Value:         value,
	})
}

// StdSink renders every event through the stdlib log package, the way
// the teacher logs membership and RPC events.
type StdSink struct{}

func (StdSink) LogNodeAdded(observer, added wire.Address) {
	log.Printf("[%s] node added: %s", observer, added)
}

func (StdSink) LogNodeRemoved(observer, removed wire.Address) {
	log.Printf("[%s] node removed: %s", observer, removed)
}

func (StdSink) LogCreateSuccess(observer wire.Address, isCoordinator bool, transID int32, key, value string) {
	log.Printf("[%s] create success %s", observer, opDesc(isCoordinator, transID, key, value))
}

func (StdSink) LogCreateFail(observer wire.Address, isCoordinator bool, transID int32, key, value string) {
	log.Printf("[%s] create fail %s", observer, opDesc(isCoordinator, transID, key, value))
}

func (StdSink) LogReadSuccess(observer wire.Address, isCoordinator bool, transID int32, key, value string) {
	log.Printf("[%s] read success %s", observer, opDesc(isCoordinator, transID, key, value))
}

func (StdSink) LogReadFail(observer wire.Address, isCoordinator bool, transID int32, key string) {
	log.Printf("[%s] read fail %s", observer, opDesc(isCoordinator, transID, key, ""))
}

func (StdSink) LogUpdateSuccess(observer wire.Address, isCoordinator bool, transID int32, key, value string) {
	log.Printf("[%s] update success %s", observer, opDesc(isCoordinator, transID, key, value))
}

func (StdSink) LogUpdateFail(observer wire.Address, isCoordinator bool, transID int32, key, value string) {
	log.Printf("[%s] update fail %s", observer, opDesc(isCoordinator, transID, key, value))
}

func (StdSink) LogDeleteSuccess(observer wire.Address, isCoordinator bool, transID int32, key string) {
	log.Printf("[%s] delete success %s", observer, opDesc(isCoordinator, transID, key, ""))
}

func (StdSink) LogDeleteFail(observer wire.Address, isCoordinator bool, transID int32, key string) {
	log.Printf("[%s] delete fail %s", observer, opDesc(isCoordinator, transID, key, ""))
}

func opDesc(isCoordinator bool, transID int32, key, value string) string {
	if value == "" {
		return fmt.Sprintf("tx=%d coord=%v key=%q", transID, isCoordinator, key)
	}
	return fmt.Sprintf("tx=%d coord=%v key=%q value=%q", transID, isCoordinator, key, value)
}
