package jackett

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMagnetUri_HexHash(t *testing.T) {
	raw := "magnet:?xt=urn:btih:C9E15763F722F23E98A29DECDFAE341B98D53056&dn=Example&tr=udp%3A%2F%2Ftracker.example.com%3A80"

	m, err := ParseMagnetUri(raw)
	assert.NoError(t, err)
	assert.Equal(t, "c9e15763f722f23e98a29decdfae341b98d53056", m.InfoHash)
	assert.Equal(t, "Example", m.Name)
	assert.Equal(t, []string{"udp://tracker.example.com:80"}, m.Trackers)
}

func TestParseMagnetUri_Base32Hash(t *testing.T) {
	// Base32 encoding of the same 20-byte hash as the hex test above.
	raw := "magnet:?xt=urn:btih:ZHQVOY7XELZD5GFCTXWN7LRUDOMNKMCW"

	m, err := ParseMagnetUri(raw)
	assert.NoError(t, err)
	assert.Equal(t, "c9e15763f722f23e98a29decdfae341b98d53056", m.InfoHash)
}

func TestParseMagnetUri_NoExactTopic(t *testing.T) {
	_, err := ParseMagnetUri("magnet:?dn=Example")
	assert.ErrorIs(t, err, errNotBTIH)
}

func TestParseMagnetUri_NotAMagnetUri(t *testing.T) {
	_, err := ParseMagnetUri("https://example.com")
	assert.Error(t, err)
}

func TestMagnet_StringRoundTrips(t *testing.T) {
	m := &Magnet{
		InfoHash: "c9e15763f722f23e98a29decdfae341b98d53056",
		Name:     "Example",
		Trackers: []string{"udp://tracker.example.com:80"},
	}

	again, err := ParseMagnetUri(m.String())
	assert.NoError(t, err)
	assert.Equal(t, m.InfoHash, again.InfoHash)
	assert.Equal(t, m.Name, again.Name)
	assert.Equal(t, m.Trackers, again.Trackers)
}

func TestMagnet_InfoHashStr(t *testing.T) {
	m := &Magnet{InfoHash: "abc123"}
	assert.Equal(t, "abc123", m.InfoHashStr())
}
