package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	raw := []byte(`{"already":"encoded"}`)
	b, headers, err := encode(Message{Value: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, b)
	assert.Empty(t, headers)

	trace := kafka.Header{Key: "trace", Value: []byte("abc")}
	in := []kafka.Header{trace}
	b, headers, err = encode(Message{Value: map[string]int{"id": 7}, Headers: in})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7}`, string(b))
	require.Len(t, headers, 2)
	assert.Equal(t, contentTypeHeader, headers[1].Key)
	assert.Len(t, in, 1)

	_, _, err = encode(Message{Value: make(chan int)})
	assert.Error(t, err)
}

func TestCompressionCodec(t *testing.T) {
	for name, want := range map[string]kafka.Compression{
		"":       kafka.Gzip,
		"gzip":   kafka.Gzip,
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
	} {
		got, err := compressionCodec(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := compressionCodec("brotli")
	assert.Error(t, err)
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithHashByKey(true))
	require.NoError(t, err)
	_, ok := p.writer.Balancer.(*kafka.Hash)
	assert.True(t, ok)
	assert.NoError(t, p.Close())
}
