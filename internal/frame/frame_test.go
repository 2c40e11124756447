package frame

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, Write(&buf, "res"))
	require.NoError(t, Write(&buf, "24/12"))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, "res", got)

	got, err = Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, "24/12", got)
}

func TestEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, ""))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestHeaderIsBigEndianLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "hello"))

	raw := buf.Bytes()
	require.Len(t, raw, 4+5)
	assert.Equal(t, uint32(5), binary.BigEndian.Uint32(raw[:4]))
	assert.Equal(t, "hello", string(raw[4:]))
}

func TestReadRejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], MaxPayload+1)
	buf.Write(hdr[:])

	_, err := Read(&buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteRejectsOversizePayload(t *testing.T) {
	err := Write(io.Discard, strings.Repeat("x", MaxPayload+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 10)
	buf.Write(hdr[:])
	buf.WriteString("short")

	_, err := Read(&buf)
	assert.Error(t, err)
}

func TestReadEOF(t *testing.T) {
	_, err := Read(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}
