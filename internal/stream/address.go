package stream

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress is returned for a malformed channel address
var ErrInvalidAddress = errors.New("invalid address: board is a-h, channel is 1-4 as in \"b3\"")

const (
	firstBoard   = 'a'
	lastBoard    = 'h'
	baseBusAddr  = 0x68
	channelCount = 4
)

// Address names one input of a pHorp board: a board letter and a channel
// label 1-4 as printed on the board.
type Address struct {
	Board   rune
	Channel int
}

// ParseAddress parses addresses such as "b3"
func ParseAddress(text string) (Address, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if len(text) != 2 {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, text)
	}

	board := rune(text[0])
	channel := int(text[1] - '0')
	if board < firstBoard || board > lastBoard || channel < 1 || channel > channelCount {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, text)
	}
	return Address{Board: board, Channel: channel}, nil
}

// BusAddress returns the I2C address of the board's converter
func (a Address) BusAddress() uint8 {
	return uint8(baseBusAddr + (a.Board - firstBoard))
}

// ADCChannel returns the converter channel. Board labels run opposite to
// the converter's channel numbers.
func (a Address) ADCChannel() int {
	return channelCount - a.Channel
}

func (a Address) String() string {
	return fmt.Sprintf("%c%d", a.Board, a.Channel)
}
