package ipc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrameThenReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, MsgSubmit, SubmitRequest{ScriptPath: "/a.sh", Workdir: "/w", NCPU: 2, NGPU: 1}))

	typ, payload, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgSubmit, typ)

	var req SubmitRequest
	require.NoError(t, DecodePayload(payload, &req))
	assert.Equal(t, "/a.sh", req.ScriptPath)
	assert.Equal(t, 2, req.NCPU)
}

func TestReadFrameRejectsTruncatedHeader(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x00})
	_, _, err := ReadFrame(buf)
	assert.Error(t, err)
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x00, 0x00, 0x00})
	_, _, err := ReadFrame(buf)
	assert.Error(t, err)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var header [4]byte
	header[0] = 0xFF
	header[1] = 0xFF
	header[2] = 0xFF
	header[3] = 0xFF
	buf := bytes.NewBuffer(header[:])
	_, _, err := ReadFrame(buf)
	assert.Error(t, err)
}

func TestReadFrameRejectsTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, MsgSubmit, SubmitRequest{ScriptPath: "/a.sh"}))
	truncated := bytes.NewBuffer(buf.Bytes()[:buf.Len()-2])
	_, _, err := ReadFrame(truncated)
	assert.Error(t, err)
}

func TestMultipleFramesOnOneStreamReadInOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, MsgSubmit, SubmitRequest{ScriptPath: "/a.sh"}))
	require.NoError(t, WriteFrame(&buf, MsgDelete, DeleteRequest{TaskIDs: []uint64{1, 2}}))

	typ1, _, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgSubmit, typ1)

	typ2, payload2, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgDelete, typ2)

	var del DeleteRequest
	require.NoError(t, DecodePayload(payload2, &del))
	assert.Equal(t, []uint64{1, 2}, del.TaskIDs)
}
