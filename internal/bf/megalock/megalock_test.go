package megalock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledIsNoop(t *testing.T) {
	l := New(false)
	assert.False(t, l.Enabled())

	// Unpaired calls must not panic or block when disabled.
	l.Release()
	l.Acquire()
	l.Acquire()
	l.Release()

	assert.Zero(t, l.Stats().Acquisitions)
}

func TestSerializesRegions(t *testing.T) {
	const workers = 16
	const perWorker = 2000

	l := New(true)
	counter := 0
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				l.Acquire()
				counter++
				l.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, counter)
	st := l.Stats()
	assert.Equal(t, uint64(workers*perWorker), st.Acquisitions)
	assert.LessOrEqual(t, st.Contended, st.Acquisitions)
}

func TestWith(t *testing.T) {
	l := New(true)
	ran := false
	l.With(func() { ran = true })
	assert.True(t, ran)

	// The lock must be free again.
	l.Acquire()
	l.Release()
	assert.Equal(t, uint64(2), l.Stats().Acquisitions)
}
