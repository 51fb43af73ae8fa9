package ui

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Input functions are package vars so tests can drive the game loop
// without a real window.
var (
	cursorPosition           = ebiten.CursorPosition
	isMouseButtonJustPressed = inpututil.IsMouseButtonJustPressed
	isMouseButtonPressed     = ebiten.IsMouseButtonPressed
	isKeyPressed             = ebiten.IsKeyPressed
	isKeyJustPressed         = inpututil.IsKeyJustPressed
	wheel                    = ebiten.Wheel
)

// SetInputForTest swaps the input functions and returns a restore func.
func SetInputForTest(
	cursor func() (int, int),
	justPressed func(ebiten.MouseButton) bool,
	pressed func(ebiten.MouseButton) bool,
	keyPressed func(ebiten.Key) bool,
) func() {
	prevCursor := cursorPosition
	prevJust := isMouseButtonJustPressed
	prevPressed := isMouseButtonPressed
	prevKey := isKeyPressed
	cursorPosition = cursor
	isMouseButtonJustPressed = justPressed
	isMouseButtonPressed = pressed
	isKeyPressed = keyPressed
	return func() {
		cursorPosition = prevCursor
		isMouseButtonJustPressed = prevJust
		isMouseButtonPressed = prevPressed
		isKeyPressed = prevKey
	}
}
