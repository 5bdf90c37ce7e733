package video

// PacketFlags classify a compressed packet.
type PacketFlags int

const (
	PacketFlagNone     PacketFlags = 0
	PacketFlagKeyFrame PacketFlags = 1 << 0
	PacketFlagHeader   PacketFlags = 1 << 1
)

// CompressedPacket is one chunk of encoded video.
type CompressedPacket struct {
	Caps     CompressedCaps
	Data     []byte
	PTS      int64
	DTS      int64
	Duration int64
	TimeBase Fraction
	Flags    PacketFlags
	ID       int64
	Index    int
}

// IsKeyFrame reports whether the packet starts a decodable sequence.
func (p *CompressedPacket) IsKeyFrame() bool {
	return p.Flags&PacketFlagKeyFrame != 0
}

// IsHeader reports whether the packet carries out-of-band stream headers.
func (p *CompressedPacket) IsHeader() bool {
	return p.Flags&PacketFlagHeader != 0
}
