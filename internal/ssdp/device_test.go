package ssdp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_UpsertReportsJoinOnlyOnce(t *testing.T) {
	tbl := NewTable()
	dev := Device{USN: "uuid:cam-1::upnp:rootdevice", ExpiresAt: time.Now().Add(time.Minute)}

	assert.True(t, tbl.Upsert(dev))
	assert.False(t, tbl.Upsert(dev))

	got, ok := tbl.Get(dev.USN)
	require.True(t, ok)
	assert.Equal(t, dev.USN, got.USN)
}

func TestTable_RemoveReportsWhetherPresent(t *testing.T) {
	tbl := NewTable()
	dev := Device{USN: "uuid:cam-1"}
	assert.False(t, tbl.Remove(dev.USN))
	tbl.Upsert(dev)
	assert.True(t, tbl.Remove(dev.USN))
	_, ok := tbl.Get(dev.USN)
	assert.False(t, ok)
}

func TestTable_Sweep_RemovesOnlyExpired(t *testing.T) {
	tbl := NewTable()
	now := time.Now()
	tbl.Upsert(Device{USN: "stale", ExpiresAt: now.Add(-time.Second)})
	tbl.Upsert(Device{USN: "fresh", ExpiresAt: now.Add(time.Hour)})
	tbl.Upsert(Device{USN: "no-expiry"})

	removed := tbl.Sweep(now)
	assert.ElementsMatch(t, []string{"stale"}, removed)

	_, staleOK := tbl.Get("stale")
	_, freshOK := tbl.Get("fresh")
	_, neverOK := tbl.Get("no-expiry")
	assert.False(t, staleOK)
	assert.True(t, freshOK)
	assert.True(t, neverOK)
}
