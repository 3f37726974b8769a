// Package input implements the NES controller shift-register protocol at
// $4016/$4017.
package input

import (
	"encoding/binary"
	"io"
)

// Button identifies one of the eight NES controller buttons, ordered as the
// shift register presents them: A, B, Select, Start, Up, Down, Left, Right.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Controller is a single NES controller's shift register.
type Controller struct {
	buttons uint8

	shiftRegister uint8
	strobe        bool

	buttonSnapshot uint8
	bitPosition    uint8
}

func New() *Controller {
	return &Controller{}
}

func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetButtons loads all eight button states at once, in controller-wire
// order: A, B, Select, Start, Up, Down, Left, Right.
func (c *Controller) SetButtons(buttons [8]bool) {
	c.buttons = 0
	bits := [8]Button{ButtonA, ButtonB, ButtonSelect, ButtonStart, ButtonUp, ButtonDown, ButtonLeft, ButtonRight}
	for i, pressed := range buttons {
		if pressed {
			c.buttons |= uint8(bits[i])
		}
	}
}

func (c *Controller) IsPressed(button Button) bool {
	return c.buttons&uint8(button) != 0
}

// Write handles a write to the controller's strobe line. Every write while
// strobe is high reloads the shift register from the live button state, and
// the falling edge reloads it once more, latching it for serial reading.
func (c *Controller) Write(value uint8) {
	wasStrobe := c.strobe
	c.strobe = value&1 != 0
	if c.strobe || wasStrobe {
		c.buttonSnapshot = c.buttons
		c.shiftRegister = c.buttons
		c.bitPosition = 0
	}
}

// Read shifts out the next button bit. With strobe held high, reads keep
// returning the A button state captured by the most recent strobe write and
// the bit counter stays at zero. Past the
// eighth bit, reads return 0 (no second shift register chained in).
func (c *Controller) Read() uint8 {
	if c.strobe {
		c.bitPosition = 0
		return c.buttonSnapshot & 1
	}

	if c.bitPosition >= 8 {
		c.bitPosition++
		return 0
	}

	result := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitPosition++
	return result
}

func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
	c.buttonSnapshot = 0
	c.bitPosition = 0
}

func (c *Controller) SaveState(w io.Writer) error {
	fields := []any{c.buttons, c.shiftRegister, c.strobe, c.buttonSnapshot, c.bitPosition}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) LoadState(r io.Reader) error {
	fields := []any{&c.buttons, &c.shiftRegister, &c.strobe, &c.buttonSnapshot, &c.bitPosition}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// InputState owns the two controller ports the NES exposes at $4016/$4017.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

func (is *InputState) SetButtons1(buttons [8]bool) { is.Controller1.SetButtons(buttons) }
func (is *InputState) SetButtons2(buttons [8]bool) { is.Controller2.SetButtons(buttons) }

// Read routes a CPU read to the addressed controller port. Port 2's open
// bus bits come back set (0x40), matching real hardware's floating bus over
// the unconnected upper bits of $4017.
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write routes a CPU write to $4016. Both controller shift registers are
// wired to the same strobe line.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}

func (is *InputState) SaveState(w io.Writer) error {
	if err := is.Controller1.SaveState(w); err != nil {
		return err
	}
	return is.Controller2.SaveState(w)
}

func (is *InputState) LoadState(r io.Reader) error {
	if err := is.Controller1.LoadState(r); err != nil {
		return err
	}
	return is.Controller2.LoadState(r)
}
