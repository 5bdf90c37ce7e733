// Package rtp sends and receives VP8/VP9 video over RTP.
//
// Compressed packets produced by the encode adapter are split into RTP
// payloads with the pion/rtp packetizer and the RFC 7741 (VP8) and VP9
// payload formats. Every RTP packet is written to an io.Writer as one
// datagram, so a connected UDP socket is the usual destination:
//
//	conn, err := net.Dial("udp", "127.0.0.1:5004")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sink, err := rtp.NewSink(conn, video.CodecVP8, rtp.SinkConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	encoder.SetSink(sink)
//
// Timestamps use the 90 kHz video clock. Each packet's PTS is rescaled
// from its time base and offset by a random per-stream base; all RTP
// packets of one frame share the timestamp and the last one carries the
// marker bit. Header packets are not sent.
//
// The Depacketizer performs the reverse operation for a single SSRC and
// drops frames that lose a packet:
//
//	d, _ := rtp.NewDepacketizer(video.CodecVP8)
//	frame, err := d.ProcessPacket(datagram)
//	if err == nil && frame != nil {
//	    handle(frame.Data, frame.Timestamp)
//	}
//
// Both types are safe for concurrent use.
package rtp
