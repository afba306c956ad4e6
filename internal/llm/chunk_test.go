package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowrag-backend/internal/model"
)

func TestParseChunkFlatShape(t *testing.T) {
	ck, err := parseChunk([]byte(`{"choices":[{"delta":{"content":"你好"},"finish_reason":""}]}`))
	require.NoError(t, err)
	assert.Equal(t, "你好", ck.Content)
	assert.Empty(t, ck.FinishReason)
}

func TestParseChunkFlatShapeWithStop(t *testing.T) {
	ck, err := parseChunk([]byte(`{"choices":[{"delta":{},"finish_reason":"stop"}]}`))
	require.NoError(t, err)
	assert.Empty(t, ck.Content)
	assert.Equal(t, "stop", ck.FinishReason)
}

func TestParseChunkNestedShape(t *testing.T) {
	ck, err := parseChunk([]byte(`{"code":0,"data":{"choices":[{"message":{"content":"世界"},"finish_reason":"sensitive_cancel"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, "世界", ck.Content)
	assert.Equal(t, "sensitive_cancel", ck.FinishReason)
}

func TestParseChunkUpstreamErrorCode(t *testing.T) {
	_, err := parseChunk([]byte(`{"code":110000,"msg":"model offline","data":null}`))
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, 110000, upErr.Code)
	assert.Equal(t, "model offline", upErr.Message)
}

func TestParseChunkCodeZeroIsNotError(t *testing.T) {
	ck, err := parseChunk([]byte(`{"code":0,"choices":[{"delta":{"content":"a"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "a", ck.Content)
}

func TestParseChunkDataNotObject(t *testing.T) {
	for _, line := range []string{
		`{"data":null}`,
		`{"data":"oops"}`,
		`{"data":[1,2]}`,
		`{}`,
	} {
		_, err := parseChunk([]byte(line))
		var invalidErr *InvalidChunkError
		require.True(t, errors.As(err, &invalidErr), "line %s should be invalid", line)
		assert.Contains(t, err.Error(), "'data' field is not an object")
	}
}

func TestParseChunkMalformedJSON(t *testing.T) {
	_, err := parseChunk([]byte(`{"choices":[`))
	require.Error(t, err)
}

func TestMapFinish(t *testing.T) {
	assert.Equal(t, model.FinishStop, mapFinish("stop"))
	assert.Equal(t, model.FinishSensitive, mapFinish("sensitive_cancel"))
	assert.Equal(t, model.FinishStreaming, mapFinish(""))
	assert.Equal(t, model.FinishStreaming, mapFinish("length"))
}
