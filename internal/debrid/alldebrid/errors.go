package alldebrid

import (
	"errors"
	"strconv"
)

var (
	ErrNoMagnet = errors.New("alldebrid: magnet was not accepted")
	ErrNotReady = errors.New("alldebrid: torrent has no ready links yet")
)

func itoa(n int) string {
	return strconv.Itoa(n)
}
