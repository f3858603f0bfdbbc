package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/evaledge/core/session"
)

type (
	DB struct {
		session   *sessionTable
		violation *violationTable
	}

	sessionTable struct {
		sync.RWMutex
		table map[uuid.UUID]*session.Session
	}

	violationTable struct {
		sync.RWMutex
		pkCount int64
		table   map[uuid.UUID][]session.Violation
	}
)

func Open() *DB {
	return &DB{
		session:   &sessionTable{table: make(map[uuid.UUID]*session.Session)},
		violation: &violationTable{table: make(map[uuid.UUID][]session.Violation)},
	}
}
