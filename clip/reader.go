package clip

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/opd-ai/film24/media"
	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"
)

// Reader reads a clip sequentially.
type Reader struct {
	r       *bufio.Reader
	header  Header
	trailer *Trailer
	digest  hash.Hash
}

// NewReader parses the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	hdr, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	digest, _ := blake2b.New256(nil)
	return &Reader{r: br, header: hdr, digest: digest}, nil
}

func readHeader(r io.Reader) (Header, error) {
	var fixed [4 + 2 + 4 + 4 + 1 + 2 + 1 + 4 + 1]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(fixed[0:4], magic[:]) {
		return Header{}, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint16(fixed[4:6]); v != version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	hdr := Header{
		Video: VideoTrack{
			Width:  int(binary.LittleEndian.Uint32(fixed[6:10])),
			Height: int(binary.LittleEndian.Uint32(fixed[10:14])),
			Format: media.PixelFormat(fixed[14]),
			Transform: media.Transform{
				Rotation: int(binary.LittleEndian.Uint16(fixed[15:17])),
				Mirrored: fixed[17] == 1,
			},
		},
		Timescale: int32(binary.LittleEndian.Uint32(fixed[18:22])),
	}
	if err := hdr.Video.validate(); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	if hdr.Timescale <= 0 {
		return Header{}, fmt.Errorf("read header: invalid timescale %d", hdr.Timescale)
	}
	if fixed[22] == 1 {
		var a [5]byte
		if _, err := io.ReadFull(r, a[:]); err != nil {
			return Header{}, fmt.Errorf("read audio header: %w", err)
		}
		hdr.Audio = &AudioTrack{
			SampleRate: binary.LittleEndian.Uint32(a[0:4]),
			Channels:   a[4],
		}
	}
	return hdr, nil
}

// Header returns the clip preamble.
func (r *Reader) Header() Header {
	return r.header
}

// Trailer returns the trailer once Next has reached it.
func (r *Reader) Trailer() (Trailer, bool) {
	if r.trailer == nil {
		return Trailer{}, false
	}
	return *r.trailer, true
}

// Next returns the next sample. It returns io.EOF after the trailer, and
// io.ErrUnexpectedEOF when the data ends without one.
func (r *Reader) Next() (Record, error) {
	if r.trailer != nil {
		return Record{}, io.EOF
	}
	kind, err := r.r.ReadByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.ErrUnexpectedEOF
		}
		return Record{}, err
	}
	if Kind(kind) == kindTrailer {
		return Record{}, r.readTrailer()
	}
	if Kind(kind) != KindVideo && Kind(kind) != KindAudio {
		return Record{}, fmt.Errorf("unknown record kind 0x%02x", kind)
	}

	var meta [12]byte
	if _, err := io.ReadFull(r.r, meta[:]); err != nil {
		return Record{}, unexpected(err)
	}
	size := binary.LittleEndian.Uint32(meta[8:12])
	if size > maxPayloadSize {
		return Record{}, fmt.Errorf("%w: record of %d bytes", ErrPayloadSize, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return Record{}, unexpected(err)
	}
	if Kind(kind) == KindVideo {
		r.digest.Write(payload)
	}
	return Record{
		Kind:    Kind(kind),
		PTS:     media.NewTime(int64(binary.LittleEndian.Uint64(meta[0:8])), r.header.Timescale),
		Payload: payload,
	}, nil
}

func (r *Reader) readTrailer() error {
	var buf [8 + 4 + 4 + 32]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return unexpected(err)
	}
	t := Trailer{
		Duration:     media.NewTime(int64(binary.LittleEndian.Uint64(buf[0:8])), r.header.Timescale),
		VideoFrames:  binary.LittleEndian.Uint32(buf[8:12]),
		AudioBuffers: binary.LittleEndian.Uint32(buf[12:16]),
	}
	copy(t.Digest[:], buf[16:48])
	r.trailer = &t

	if !bytes.Equal(r.digest.Sum(nil), t.Digest[:]) {
		return ErrDigestMismatch
	}
	return io.EOF
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Info summarises a finished clip.
type Info struct {
	Header
	Trailer
	Size int64
}

// Probe reads a whole clip from fs, verifying its digest, and returns its
// summary.
func Probe(fs afero.Fs, path string) (Info, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	r, err := NewReader(f)
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", path, err)
	}
	for {
		if _, err := r.Next(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Info{}, fmt.Errorf("probe %s: %w", path, err)
		}
	}
	t, _ := r.Trailer()
	info := Info{Header: r.Header(), Trailer: t}
	if st, err := f.Stat(); err == nil {
		info.Size = st.Size()
	}
	return info, nil
}
