package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeForFingerprint(t *testing.T) {
	assert.Equal(t, "goroutines and channels", normalizeForFingerprint("Goroutines AND Channels!"))
	assert.Equal(t, "slide 3 memory model", normalizeForFingerprint("  Slide 3:\n\tMemory   Model  "))
	assert.Equal(t, "", normalizeForFingerprint("...---!!!"))
	assert.Equal(t, "", normalizeForFingerprint(""))
}

func TestFingerprintSimilarityIdentical(t *testing.T) {
	a := newFingerprint(normalizeForFingerprint("Concurrency in Go: goroutines, channels, select"))
	b := newFingerprint(normalizeForFingerprint("Concurrency in Go: goroutines, channels, select"))
	assert.Equal(t, 1.0, a.similarity(b))
}

func TestFingerprintSimilarityTolerantToOCRNoise(t *testing.T) {
	// One character substitution in a paragraph of text should stay well
	// above any reasonable dedup threshold.
	a := newFingerprint(normalizeForFingerprint(
		"The scheduler multiplexes goroutines onto operating system threads and parks blocked ones"))
	b := newFingerprint(normalizeForFingerprint(
		"The scheduler multiplexes goroutines onto operating systen threads and parks blocked ones"))
	assert.Greater(t, a.similarity(b), 0.82)
}

func TestFingerprintSimilarityDistinctContent(t *testing.T) {
	a := newFingerprint(normalizeForFingerprint("Introduction to distributed consensus and the Raft protocol"))
	b := newFingerprint(normalizeForFingerprint("Agenda for today lab setup grading questions"))
	assert.Less(t, a.similarity(b), 0.2)
}

func TestFingerprintSimilarityEmpty(t *testing.T) {
	empty := newFingerprint("")
	full := newFingerprint("hello world")
	assert.Equal(t, 1.0, empty.similarity(newFingerprint("")))
	assert.Equal(t, 0.0, empty.similarity(full))
	assert.Equal(t, 0.0, full.similarity(empty))
}

func TestFingerprintShortTokensKeptWhole(t *testing.T) {
	a := newFingerprint("go io os")
	b := newFingerprint("go io os")
	assert.Equal(t, 1.0, a.similarity(b))
	assert.True(t, newFingerprint("").empty())
	assert.False(t, a.empty())
}

func TestDedupKeyStableAndDistinct(t *testing.T) {
	k1 := dedupKey("goroutines and channels")
	k2 := dedupKey("goroutines and channels")
	k3 := dedupKey("something else entirely")
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 64)
}
