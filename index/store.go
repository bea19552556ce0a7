package index

import "fmt"

// Store bundles every domain index behind one Open/Close pair, the way
// cmd/ticketctl (and a real ticketing service) needs all six open at
// once for the lifetime of the process.
type Store struct {
	Users            *Users
	UnreleasedTrains *UnreleasedTrains
	ReleasedTrains   *ReleasedTrains
	SeatVectors      *SeatVectors
	StationIndex     *StationIndex
	OrderLog         *OrderLog
}

// Open creates or opens every index under cfg.Dir. On any failure it
// closes whatever was already opened before returning the error.
func Open(cfg Config) (*Store, error) {
	s := &Store{}

	steps := []struct {
		name string
		open func() error
	}{
		{"users", func() (err error) { s.Users, err = OpenUsers(cfg); return }},
		{"unreleased trains", func() (err error) { s.UnreleasedTrains, err = OpenUnreleasedTrains(cfg); return }},
		{"released trains", func() (err error) { s.ReleasedTrains, err = OpenReleasedTrains(cfg); return }},
		{"seat vectors", func() (err error) { s.SeatVectors, err = OpenSeatVectors(cfg); return }},
		{"station index", func() (err error) { s.StationIndex, err = OpenStationIndex(cfg); return }},
		{"order log", func() (err error) { s.OrderLog, err = OpenOrderLog(cfg); return }},
	}

	for _, step := range steps {
		if err := step.open(); err != nil {
			s.Close()
			return nil, fmt.Errorf("index: open %s: %w", step.name, err)
		}
	}
	return s, nil
}

// Close releases every index that was successfully opened, collecting the
// first error encountered but still attempting the rest. Fields left nil
// by a partial Open are skipped.
func (s *Store) Close() error {
	var first error
	note := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if s.Users != nil {
		note(s.Users.Close())
	}
	if s.UnreleasedTrains != nil {
		note(s.UnreleasedTrains.Close())
	}
	if s.ReleasedTrains != nil {
		note(s.ReleasedTrains.Close())
	}
	if s.SeatVectors != nil {
		note(s.SeatVectors.Close())
	}
	if s.StationIndex != nil {
		note(s.StationIndex.Close())
	}
	if s.OrderLog != nil {
		note(s.OrderLog.Close())
	}
	return first
}
