package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Profile() ProfileRepository
	Routine() RoutineRepository
	Cart() CartRepository
	Catalog() CatalogRepository
	History() HistoryRepository

	Close() error
}
