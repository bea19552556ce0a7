package fixedrecord

import (
	"encoding/binary"

	"github.com/HenryHe0123/ticket-storage/codec"
)

// UserID, TrainID and StationName are the key types the index package
// builds trees over; they are plain Strings, so String's Compare already
// satisfies codec.Ordered for each of them.
type (
	UserID      = String
	TrainID     = String
	StationName = String
)

// MaxStations bounds the number of stops a TrainRecord can carry,
// grounded on original_source/src/trainSystem.h's Train (stationNum 2..N,
// stations[N]/prices[N]/travelTimes[N]/stopoverTimes[N], N=100) but
// trimmed so one record stays about a kilobyte (TrainRecordEncodedSize is
// 1,046 bytes) rather than about six; the storage core itself has no
// opinion on this constant.
const MaxStations = 16

// UserRecord is index.Users' value type, grounded on
// original_source/src/userSystem.h's User: username, password, display
// name, mail, and a privilege level (0..10, 10 being root).
type UserRecord struct {
	Username  String
	Password  String
	Name      String
	Mail      String
	Privilege int32
}

func UserRecordEncodedSize() int { return StringEncodedSize()*4 + 4 }

func (u UserRecord) Encode(buf []byte) {
	sz := StringEncodedSize()
	u.Username.Encode(buf[0:sz])
	u.Password.Encode(buf[sz : 2*sz])
	u.Name.Encode(buf[2*sz : 3*sz])
	u.Mail.Encode(buf[3*sz : 4*sz])
	binary.BigEndian.PutUint32(buf[4*sz:4*sz+4], uint32(u.Privilege))
}

func DecodeUserRecord(buf []byte) UserRecord {
	sz := StringEncodedSize()
	return UserRecord{
		Username:  DecodeString(buf[0:sz]),
		Password:  DecodeString(buf[sz : 2*sz]),
		Name:      DecodeString(buf[2*sz : 3*sz]),
		Mail:      DecodeString(buf[3*sz : 4*sz]),
		Privilege: int32(binary.BigEndian.Uint32(buf[4*sz : 4*sz+4])),
	}
}

var UserRecordCodec = codec.Codec[UserRecord]{
	Size:   UserRecordEncodedSize(),
	Encode: func(v UserRecord, buf []byte) { v.Encode(buf) },
	Decode: DecodeUserRecord,
}

// TrainRecord is index.UnreleasedTrains' and index.ReleasedTrains' value
// type, grounded on trainSystem.h's Train: route, pricing, schedule and
// validity window for one train.
type TrainRecord struct {
	TrainID       String
	StationCount  int32
	Stations      [MaxStations]String
	SeatCapacity  int32
	Prices        [MaxStations]int32
	StartTimeMin  int32 // minutes after midnight
	TravelTimes   [MaxStations]int32
	StopoverTimes [MaxStations]int32
	BeginDate     int32 // day offset, caller's epoch
	EndDate       int32
	Type          byte
}

func TrainRecordEncodedSize() int {
	sz := StringEncodedSize()
	return sz + 4 + MaxStations*sz + 4 + MaxStations*4 + 4 + MaxStations*4 + MaxStations*4 + 4 + 4 + 1
}

func (t TrainRecord) Encode(buf []byte) {
	sz := StringEncodedSize()
	off := 0
	t.TrainID.Encode(buf[off : off+sz])
	off += sz
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(t.StationCount))
	off += 4
	for i := 0; i < MaxStations; i++ {
		t.Stations[i].Encode(buf[off : off+sz])
		off += sz
	}
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(t.SeatCapacity))
	off += 4
	for i := 0; i < MaxStations; i++ {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(t.Prices[i]))
		off += 4
	}
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(t.StartTimeMin))
	off += 4
	for i := 0; i < MaxStations; i++ {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(t.TravelTimes[i]))
		off += 4
	}
	for i := 0; i < MaxStations; i++ {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(t.StopoverTimes[i]))
		off += 4
	}
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(t.BeginDate))
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(t.EndDate))
	off += 4
	buf[off] = t.Type
}

func DecodeTrainRecord(buf []byte) TrainRecord {
	sz := StringEncodedSize()
	var t TrainRecord
	off := 0
	t.TrainID = DecodeString(buf[off : off+sz])
	off += sz
	t.StationCount = int32(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	for i := 0; i < MaxStations; i++ {
		t.Stations[i] = DecodeString(buf[off : off+sz])
		off += sz
	}
	t.SeatCapacity = int32(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	for i := 0; i < MaxStations; i++ {
		t.Prices[i] = int32(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	t.StartTimeMin = int32(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	for i := 0; i < MaxStations; i++ {
		t.TravelTimes[i] = int32(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	for i := 0; i < MaxStations; i++ {
		t.StopoverTimes[i] = int32(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	t.BeginDate = int32(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	t.EndDate = int32(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	t.Type = buf[off]
	return t
}

var TrainRecordCodec = codec.Codec[TrainRecord]{
	Size:   TrainRecordEncodedSize(),
	Encode: func(v TrainRecord, buf []byte) { v.Encode(buf) },
	Decode: DecodeTrainRecord,
}

// SeatVector is index.SeatVectors' value type: remaining-seat counts per
// leg for one released train on one departure date, grounded on
// trainSystem.h's Seat (remain[N]).
type SeatVector struct {
	Remain [MaxStations]int32
}

func SeatVectorEncodedSize() int { return MaxStations * 4 }

func (s SeatVector) Encode(buf []byte) {
	off := 0
	for i := 0; i < MaxStations; i++ {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(s.Remain[i]))
		off += 4
	}
}

func DecodeSeatVector(buf []byte) SeatVector {
	var s SeatVector
	off := 0
	for i := 0; i < MaxStations; i++ {
		s.Remain[i] = int32(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	return s
}

var SeatVectorCodec = codec.Codec[SeatVector]{
	Size:   SeatVectorEncodedSize(),
	Encode: func(v SeatVector, buf []byte) { v.Encode(buf) },
	Decode: DecodeSeatVector,
}

// OrderRecord is index.OrderLog's value type: one ticket purchase. It
// carries its own Compare so a MultiTree[UserID, OrderRecord] enumerates a
// user's orders by OrderID, i.e. submission order, rather than by the
// record's raw bytes.
type OrderRecord struct {
	OrderID   int64
	TrainID   String
	Date      int32
	FromIndex int32
	ToIndex   int32
	SeatCount int32
	Status    byte // 0=success, 1=pending (queued), 2=refunded
}

func (o OrderRecord) Compare(other OrderRecord) int {
	switch {
	case o.OrderID < other.OrderID:
		return -1
	case o.OrderID > other.OrderID:
		return 1
	default:
		return 0
	}
}

func OrderRecordEncodedSize() int { return 8 + StringEncodedSize() + 4 + 4 + 4 + 4 + 1 }

func (o OrderRecord) Encode(buf []byte) {
	sz := StringEncodedSize()
	off := 0
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(o.OrderID))
	off += 8
	o.TrainID.Encode(buf[off : off+sz])
	off += sz
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(o.Date))
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(o.FromIndex))
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(o.ToIndex))
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(o.SeatCount))
	off += 4
	buf[off] = o.Status
}

func DecodeOrderRecord(buf []byte) OrderRecord {
	sz := StringEncodedSize()
	var o OrderRecord
	off := 0
	o.OrderID = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	o.TrainID = DecodeString(buf[off : off+sz])
	off += sz
	o.Date = int32(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	o.FromIndex = int32(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	o.ToIndex = int32(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	o.SeatCount = int32(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	o.Status = buf[off]
	return o
}

var OrderRecordCodec = codec.Codec[OrderRecord]{
	Size:   OrderRecordEncodedSize(),
	Encode: func(v OrderRecord, buf []byte) { v.Encode(buf) },
	Decode: DecodeOrderRecord,
}
