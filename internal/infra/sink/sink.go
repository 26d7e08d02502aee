// Package sink writes the playlist's frame stream to files or stdout.
package sink

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/gaplessbox/internal/domain/audio"
	"github.com/osa030/gaplessbox/internal/infra/encoder"
)

// Sink types
const (
	TypePCM  = "pcm"
	TypeOpus = "opus"
	TypeNull = "null"
)

// Stdout is the path that selects standard output.
const Stdout = "-"

// ErrPacketTooLarge is returned by ReadPacket for a length prefix no encoder
// packet can have.
var ErrPacketTooLarge = errors.New("packet too large")

// Sink consumes frames in the playlist's output format.
type Sink interface {
	WriteFrame(frame audio.Frame) error
	Close() error
}

// Open creates a sink of the given type writing to path.
func Open(typ, path string, format audio.Format, opusCfg encoder.Config) (Sink, error) {
	if typ == TypeNull {
		return &Null{}, nil
	}

	w, err := openWriter(path)
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypePCM:
		return NewPCM(w), nil
	case TypeOpus:
		enc, err := encoder.NewOpus(format, opusCfg)
		if err != nil {
			w.Close()
			return nil, err
		}
		return NewOpus(w, enc), nil
	default:
		w.Close()
		return nil, errors.Newf("unsupported sink type: %s", typ)
	}
}

func openWriter(path string) (io.WriteCloser, error) {
	if path == Stdout || path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", path)
	}
	zlog.Debug().Msgf("sink: writing output to %s", path)
	return f, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// PCM writes raw little-endian samples in the frame's sample type.
type PCM struct {
	w       io.WriteCloser
	written int64
}

// NewPCM creates a PCM sink over w.
func NewPCM(w io.WriteCloser) *PCM {
	return &PCM{w: w}
}

// WriteFrame implements Sink.
func (s *PCM) WriteFrame(frame audio.Frame) error {
	n, err := s.w.Write(frame.Bytes())
	s.written += int64(n)
	if err != nil {
		return errors.Wrap(err, "failed to write pcm")
	}
	return nil
}

// Written returns the number of bytes written.
func (s *PCM) Written() int64 {
	return s.written
}

// Close implements Sink.
func (s *PCM) Close() error {
	zlog.Debug().Msgf("pcm: closing after %d bytes", s.Written())
	return s.w.Close()
}

// Opus encodes frames and writes each packet prefixed with its length as a
// little-endian uint32.
type Opus struct {
	w       io.WriteCloser
	enc     *encoder.Opus
	packets int
}

// NewOpus creates an Opus sink over w.
func NewOpus(w io.WriteCloser, enc *encoder.Opus) *Opus {
	return &Opus{w: w, enc: enc}
}

// WriteFrame implements Sink.
func (s *Opus) WriteFrame(frame audio.Frame) error {
	packets, err := s.enc.Encode(frame)
	if err != nil {
		return err
	}
	return s.write(packets)
}

// Packets returns the number of packets written.
func (s *Opus) Packets() int {
	return s.packets
}

// Close flushes the encoder and closes the writer.
func (s *Opus) Close() error {
	packets, err := s.enc.Flush()
	if err == nil {
		err = s.write(packets)
	}
	zlog.Debug().Msgf("opus: closing after %d packets", s.Packets())
	if cerr := s.w.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Opus) write(packets []encoder.Packet) error {
	var header [4]byte
	for _, p := range packets {
		binary.LittleEndian.PutUint32(header[:], uint32(len(p.Data)))
		if _, err := s.w.Write(header[:]); err != nil {
			return errors.Wrap(err, "failed to write packet header")
		}
		if _, err := s.w.Write(p.Data); err != nil {
			return errors.Wrap(err, "failed to write packet")
		}
		s.packets++
	}
	return nil
}

// ReadPacket reads one length-prefixed packet written by Opus.
func ReadPacket(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > encoder.MaxPacketSize {
		return nil, errors.Wrapf(ErrPacketTooLarge, "%d bytes", size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.Wrap(err, "truncated packet")
	}
	return data, nil
}

// Null discards frames, keeping count.
type Null struct {
	Frames  int
	Samples int
}

// WriteFrame implements Sink.
func (s *Null) WriteFrame(frame audio.Frame) error {
	s.Frames++
	s.Samples += frame.Len()
	return nil
}

// Close implements Sink.
func (s *Null) Close() error {
	return nil
}
