package app

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct{ frames [][]byte }

func (c *fakeConn) TrySend(data []byte) error {
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close() {}

func TestRegistryMultipleConnsPerUser(t *testing.T) {
	r := NewRegistry()
	tab1 := &fakeConn{}
	tab2 := &fakeConn{}

	r.Add(7, tab1)
	r.Add(7, tab2)
	assert.Len(t, r.ConnsOf(7), 2)
	assert.Equal(t, []int64{7}, r.UserIDs())

	// Dropping one tab keeps the user online.
	r.Remove(7, tab1)
	assert.Len(t, r.ConnsOf(7), 1)
	assert.Equal(t, []int64{7}, r.UserIDs())

	r.Remove(7, tab2)
	assert.Nil(t, r.ConnsOf(7))
	assert.Empty(t, r.UserIDs())

	// Removing an unknown connection is a no-op.
	r.Remove(7, tab1)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		userID := int64(i % 4)
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			r.Add(userID, c)
			r.ConnsOf(userID)
			r.UserIDs()
			r.Remove(userID, c)
		}()
	}
	wg.Wait()
	assert.Empty(t, r.UserIDs())
}
