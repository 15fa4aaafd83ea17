package geoip

import (
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	rec    *geoip2.City
	err    error
	calls  int
	closed bool
}

func (f *fakeReader) City(net.IP) (*geoip2.City, error) {
	f.calls++
	return f.rec, f.err
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func lagosRecord() *geoip2.City {
	rec := &geoip2.City{}
	rec.Location.Latitude = 6.4541
	rec.Location.Longitude = 3.3947
	rec.Location.AccuracyRadius = 50
	return rec
}

func TestLocate(t *testing.T) {
	r := &fakeReader{rec: lagosRecord()}
	l := &Locator{db: r}

	got, err := l.Locate(net.ParseIP("102.89.0.1"))
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinates{Lat: 6.4541, Lon: 3.3947}, got)
}

func TestLocate_NonRoutableSkipsLookup(t *testing.T) {
	r := &fakeReader{rec: lagosRecord()}
	l := &Locator{db: r}

	for _, addr := range []string{"127.0.0.1", "10.1.2.3", "192.168.0.10", "::1", "0.0.0.0"} {
		_, err := l.Locate(net.ParseIP(addr))
		assert.ErrorIs(t, err, ErrNotLocated, addr)
	}
	_, err := l.Locate(nil)
	assert.ErrorIs(t, err, ErrNotLocated)
	assert.Zero(t, r.calls)
}

func TestLocate_EmptyRecord(t *testing.T) {
	l := &Locator{db: &fakeReader{rec: &geoip2.City{}}}
	_, err := l.Locate(net.ParseIP("8.8.8.8"))
	assert.ErrorIs(t, err, ErrNotLocated)
}

func TestLocate_ReaderError(t *testing.T) {
	l := &Locator{db: &fakeReader{err: errors.New("corrupt")}}
	_, err := l.Locate(net.ParseIP("8.8.8.8"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotLocated)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	r := &fakeReader{}
	require.NoError(t, (&Locator{db: r}).Close())
	assert.True(t, r.closed)
}
