package rle_test

import (
	"context"
	"testing"

	"github.com/dargueta/bitpress"
	"github.com/dargueta/bitpress/rle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowTaskRunsThroughRegistry(t *testing.T) {
	row := randomBits(300, 99)

	direct, err := rle.EncodeRow(row)
	require.NoError(t, err)

	task, err := rle.RowTask(row)
	require.NoError(t, err)
	require.Equal(t, rle.OpEncodeRow, task.Op)

	viaRegistry, err := bitpress.RunTask(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, direct, viaRegistry)
}

func TestChunkTasksOnBackendMatchSequentialRow(t *testing.T) {
	row := randomBits(500, 1234)

	sequential, err := rle.EncodeRow(row)
	require.NoError(t, err)

	be := bitpress.NewSerial()
	defer be.Close()

	var tasks []bitpress.Task
	for start := 0; start < row.Len(); start += rle.MaxChunkBits {
		end := start + rle.MaxChunkBits
		if end > row.Len() {
			end = row.Len()
		}
		task, err := rle.ChunkTask(row.Slice(start, end))
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	handles, err := be.SubmitAll(context.Background(), tasks)
	require.NoError(t, err)
	results, err := bitpress.AwaitAll(context.Background(), handles)
	require.NoError(t, err)

	var joined []byte
	for _, part := range results {
		joined = append(joined, part...)
	}
	assert.Equal(t, sequential, joined)
}

func TestRowTaskRejectsOversizedRow(t *testing.T) {
	_, err := rle.RowTask(solidBits(false, 70000))
	assert.Error(t, err, "a row longer than a uint16 cannot be framed")
}

func TestEncodeRowOpRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		Name    string
		Payload []byte
	}{
		{"empty", nil},
		{"one byte", []byte{9}},
		{"length prefix lies", []byte{100, 0, 0xFF}},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			_, err := bitpress.RunTask(
				context.Background(),
				bitpress.Task{Op: rle.OpEncodeRow, Payload: test.Payload})
			assert.Error(t, err)
		})
	}
}
