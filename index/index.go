// Package index composes the storage core (btree, pagedfile, pagecache)
// into the fixed-size domain indexes a ticketing system needs: users,
// trains (unreleased and released), per-departure seat vectors, the
// station inverted index and each user's order log. None of these types
// implement pricing, seat accounting, transfer search or refund
// promotion — per the storage spec those stay out of scope; this layer
// only wires codecs to trees the way
// original_source/src/{userSystem,trainSystem}.h's members are themselves
// thin wrappers around my::BPT/my::BPT(multi).
package index

import (
	"path/filepath"

	"github.com/HenryHe0123/ticket-storage/btree"
	"github.com/HenryHe0123/ticket-storage/fixedrecord"
)

// Config bundles the directory every index's tree file lives under and the
// per-tree tuning knobs, mirroring btree.Config/btree.DefaultConfig one
// layer up.
type Config struct {
	Dir  string
	Tree btree.Config
}

// DefaultConfig mirrors the teacher's DefaultConfig(dir) constructors.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, Tree: btree.DefaultConfig()}
}

func (c Config) path(name string) string {
	return filepath.Join(c.Dir, name)
}

// Users is index.Users from SPEC_FULL.md section 4: a
// UniqueTree[UserID, UserRecord], grounded on userSystem.h's user_map.
type Users struct {
	*btree.UniqueTree[fixedrecord.UserID, fixedrecord.UserRecord]
}

func OpenUsers(cfg Config) (*Users, error) {
	t, err := btree.OpenUnique[fixedrecord.UserID, fixedrecord.UserRecord](
		cfg.path("users.tree"), fixedrecord.StringCodec, fixedrecord.UserRecordCodec, cfg.Tree)
	if err != nil {
		return nil, err
	}
	return &Users{t}, nil
}

// UnreleasedTrains and ReleasedTrains are index.UnreleasedTrains /
// index.ReleasedTrains: two separate UniqueTree[TrainID, TrainRecord]
// instances, matching trainSystem.h splitting train_map from
// released_trains so query_train on a released train never touches
// unreleased state.
type UnreleasedTrains struct {
	*btree.UniqueTree[fixedrecord.TrainID, fixedrecord.TrainRecord]
}

func OpenUnreleasedTrains(cfg Config) (*UnreleasedTrains, error) {
	t, err := btree.OpenUnique[fixedrecord.TrainID, fixedrecord.TrainRecord](
		cfg.path("unreleased_trains.tree"), fixedrecord.StringCodec, fixedrecord.TrainRecordCodec, cfg.Tree)
	if err != nil {
		return nil, err
	}
	return &UnreleasedTrains{t}, nil
}

type ReleasedTrains struct {
	*btree.UniqueTree[fixedrecord.TrainID, fixedrecord.TrainRecord]
}

func OpenReleasedTrains(cfg Config) (*ReleasedTrains, error) {
	t, err := btree.OpenUnique[fixedrecord.TrainID, fixedrecord.TrainRecord](
		cfg.path("released_trains.tree"), fixedrecord.StringCodec, fixedrecord.TrainRecordCodec, cfg.Tree)
	if err != nil {
		return nil, err
	}
	return &ReleasedTrains{t}, nil
}

// SeatVectors is index.SeatVectors: a
// UniqueTree[TrainDateKey, SeatVector] keyed by (trainID, date), grounded
// on trainSystem.h's seats_map (Seat_Index -> Seat).
type SeatVectors struct {
	*btree.UniqueTree[fixedrecord.TrainDateKey, fixedrecord.SeatVector]
}

func OpenSeatVectors(cfg Config) (*SeatVectors, error) {
	t, err := btree.OpenUnique[fixedrecord.TrainDateKey, fixedrecord.SeatVector](
		cfg.path("seat_vectors.tree"), fixedrecord.TrainDateKeyCodec, fixedrecord.SeatVectorCodec, cfg.Tree)
	if err != nil {
		return nil, err
	}
	return &SeatVectors{t}, nil
}

// StationIndex is index.StationIndex: a
// MultiTree[StationName, TrainID], the station->stop inverted index named
// in spec.md's system overview.
type StationIndex struct {
	*btree.MultiTree[fixedrecord.StationName, fixedrecord.TrainID]
}

func OpenStationIndex(cfg Config) (*StationIndex, error) {
	t, err := btree.OpenMulti[fixedrecord.StationName, fixedrecord.TrainID](
		cfg.path("station_index.tree"), fixedrecord.StringCodec, fixedrecord.StringCodec, cfg.Tree)
	if err != nil {
		return nil, err
	}
	return &StationIndex{t}, nil
}

// OrderLog is index.OrderLog: a MultiTree[UserID, OrderRecord], ordered by
// (username, orderID) so ForEach/Find enumerate a user's orders in
// submission order (OrderRecord.Compare orders by OrderID).
type OrderLog struct {
	*btree.MultiTree[fixedrecord.UserID, fixedrecord.OrderRecord]
}

func OpenOrderLog(cfg Config) (*OrderLog, error) {
	t, err := btree.OpenMulti[fixedrecord.UserID, fixedrecord.OrderRecord](
		cfg.path("order_log.tree"), fixedrecord.StringCodec, fixedrecord.OrderRecordCodec, cfg.Tree)
	if err != nil {
		return nil, err
	}
	return &OrderLog{t}, nil
}
