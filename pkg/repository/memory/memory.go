package memory

import (
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory keeps every store in process memory. It is used for tests and for local runs
// without a datastore.
type Memory struct {
	profile *profileRepository
	routine *routineRepository
	cart    *cartRepository
	catalog *catalogRepository
	history *historyRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		profile: newProfileRepository(),
		routine: newRoutineRepository(),
		cart:    newCartRepository(),
		catalog: newCatalogRepository(),
		history: newHistoryRepository(),
	}
}

func (m *Memory) Profile() interfaces.ProfileRepository {
	return m.profile
}

func (m *Memory) Routine() interfaces.RoutineRepository {
	return m.routine
}

func (m *Memory) Cart() interfaces.CartRepository {
	return m.cart
}

func (m *Memory) Catalog() interfaces.CatalogRepository {
	return m.catalog
}

func (m *Memory) History() interfaces.HistoryRepository {
	return m.history
}

func (m *Memory) Close() error {
	return nil
}
