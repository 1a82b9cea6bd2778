package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufReader hands out buffered bytes and returns short reads once empty,
// the way a serial port behaves when its read timeout elapses.
type bufReader struct {
	data []byte
}

func (b *bufReader) ReadUpTo(n int) ([]byte, error) {
	if n > len(b.data) {
		n = len(b.data)
	}
	out := b.data[:n]
	b.data = b.data[n:]
	return out, nil
}

type failingReader struct{ err error }

func (f failingReader) ReadUpTo(int) ([]byte, error) { return nil, f.err }

func TestReadResponse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		confirmOnly bool
		want        Response
		wantErr     error
		leftover    int
	}{
		{name: "confirm only", input: "01", confirmOnly: true, want: Ack{Success: true}},
		{name: "confirm only ignores trailing", input: "0103", confirmOnly: true, want: Ack{Success: true}, leftover: 1},
		{name: "nack", input: "02", want: Ack{Success: false}},
		{name: "nack stops reading", input: "0203", want: Ack{Success: false}, leftover: 1},
		{name: "bad sync", input: "05", wantErr: ErrUnexpectedSync},
		{name: "no sync", input: "", wantErr: ErrTimeout},
		{name: "byte result ok", input: "0103", want: ByteResult{Success: true}},
		{name: "byte result fail", input: "0104", want: ByteResult{Success: false}},
		{name: "bad start byte", input: "0199", wantErr: ErrUnexpectedStartByte},
		{name: "missing start byte", input: "01", wantErr: ErrTimeout},
		{
			name:  "data frame",
			input: "01" + "713704000001020304014d",
			want:  DataFrame{Command: CmdChipID, Payload: []byte{1, 2, 3, 4}},
		},
		{
			name:  "empty data frame",
			input: "01" + "7136000000700b",
			want:  DataFrame{Command: CmdBootloaderVersion},
		},
		{name: "short header", input: "01713704", wantErr: ErrTimeout},
		{name: "short payload", input: "0171370400000102", wantErr: ErrTimeout},
		{name: "short checksum", input: "01713704000001020304", wantErr: ErrTimeout},
		{name: "bad checksum", input: "01" + "713704000001020304024d", wantErr: ErrChecksumMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &bufReader{data: mustHex(t, tt.input)}
			got, err := ReadResponse(r, tt.confirmOnly)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, r.data, tt.leftover)
		})
	}
}

func TestReadResponseShortReadDetail(t *testing.T) {
	_, err := ReadResponse(&bufReader{data: mustHex(t, "01713704")}, false)

	var short *ShortReadError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, "header", short.Stage)
	assert.Equal(t, HeaderSize, short.Want)
	assert.Equal(t, []byte{0x37, 0x04}, short.Got)
}

func TestReadResponseTransportError(t *testing.T) {
	boom := errors.New("port closed")
	_, err := ReadResponse(failingReader{err: boom}, true)
	assert.ErrorIs(t, err, boom)
}

// Flipping any bit of the command, reserved byte or payload must break the
// checksum. Flips in the length field change how many bytes are consumed,
// so they surface either as a mismatch or as a short read.
func TestReadResponseBitFlips(t *testing.T) {
	frame := mustHex(t, "713704000001020304014d")

	for i := 1; i < len(frame)-ChecksumSize; i++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte{SyncSuccess}, frame...)
			corrupt[1+i] ^= 1 << bit

			_, err := ReadResponse(&bufReader{data: corrupt}, false)
			require.Error(t, err, "byte %d bit %d", i, bit)

			if i == 2 || i == 3 {
				assert.True(t, errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrTimeout),
					"byte %d bit %d: %v", i, bit, err)
				continue
			}
			assert.ErrorIs(t, err, ErrChecksumMismatch, "byte %d bit %d", i, bit)
		}
	}
}
