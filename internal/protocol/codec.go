package protocol

import (
	"fmt"

	"github.com/icza/s2prot"
)

// Record is one event of a tracker or game event stream. Loop is absolute.
type Record struct {
	Loop    int64
	UserID  int64
	EventID int64
	Event   Fields
}

// Codec decodes the archive files of one build. Event streams return the
// records decoded before a failure together with the error.
type Codec interface {
	Details(data []byte) (Fields, error)
	InitData(data []byte) (Fields, error)
	TrackerEvents(data []byte) ([]Record, error)
	GameEvents(data []byte) ([]Record, error)
}

// DecodeHeader decodes the user data header. Its layout is shared by every
// build, so this runs before the schema is known.
func DecodeHeader(blob []byte) (f Fields, err error) {
	defer recoverMalformed(&err)
	s := s2prot.DecodeHeader(blob)
	if s == nil {
		return nil, fmt.Errorf("%w: empty header", ErrMalformed)
	}
	return Fields(s), nil
}

// NewS2ProtCodec returns the codec for baseBuild backed by s2prot's type
// tables, or ErrUnsupportedVersion when s2prot does not know the build.
func NewS2ProtCodec(baseBuild int) (Codec, error) {
	p := s2prot.GetProtocol(baseBuild)
	if p == nil {
		return nil, fmt.Errorf("%w: no protocol for base build %d", ErrUnsupportedVersion, baseBuild)
	}
	return s2protCodec{p: p}, nil
}

type s2protCodec struct {
	p *s2prot.Protocol
}

func (c s2protCodec) Details(data []byte) (f Fields, err error) {
	defer recoverMalformed(&err)
	s := c.p.DecodeDetails(data)
	if s == nil {
		return nil, fmt.Errorf("%w: details", ErrMalformed)
	}
	return Fields(s), nil
}

func (c s2protCodec) InitData(data []byte) (f Fields, err error) {
	defer recoverMalformed(&err)
	s := c.p.DecodeInitData(data)
	if s == nil {
		return nil, fmt.Errorf("%w: initData", ErrMalformed)
	}
	return Fields(s), nil
}

func (c s2protCodec) TrackerEvents(data []byte) (recs []Record, err error) {
	defer recoverMalformed(&err)
	evts, err := c.p.DecodeTrackerEvts(data)
	recs = records(evts, false)
	if err != nil {
		err = fmt.Errorf("%w: tracker events: %v", ErrMalformed, err)
	}
	return recs, err
}

func (c s2protCodec) GameEvents(data []byte) (recs []Record, err error) {
	defer recoverMalformed(&err)
	evts, err := c.p.DecodeGameEvts(data)
	recs = records(evts, true)
	if err != nil {
		err = fmt.Errorf("%w: game events: %v", ErrMalformed, err)
	}
	return recs, err
}

func records(evts []s2prot.Event, withUser bool) []Record {
	out := make([]Record, 0, len(evts))
	for i := range evts {
		e := &evts[i]
		if e.EvtType == nil {
			continue
		}
		rec := Record{
			Loop:    int64(e.Loop()),
			UserID:  -1,
			EventID: int64(e.ID),
			Event:   Fields(e.Struct),
		}
		if withUser {
			rec.UserID = int64(e.UserID())
		}
		out = append(out, rec)
	}
	return out
}

// recoverMalformed turns a decoder panic into ErrMalformed.
func recoverMalformed(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrMalformed, r)
	}
}
