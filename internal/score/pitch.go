package score

// RestPitch is the sentinel pitch for rests.
const RestPitch = "rest"

var stepSemitones = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// MIDINote converts scientific pitch notation ("C4", "F#3", "Bb2") to a
// MIDI note number (C4 = 60). Reports false for rests and malformed input.
func MIDINote(pitch string) (int, bool) {
	if pitch == "" || pitch == RestPitch {
		return 0, false
	}
	step := pitch[0]
	if step >= 'a' && step <= 'g' {
		step -= 'a' - 'A'
	}
	semis, ok := stepSemitones[step]
	if !ok {
		return 0, false
	}
	i := 1
	for i < len(pitch) {
		switch pitch[i] {
		case '#':
			semis++
		case 'b':
			semis--
		default:
			goto octave
		}
		i++
	}
octave:
	if i >= len(pitch) {
		return 0, false
	}
	neg := false
	if pitch[i] == '-' {
		neg = true
		i++
	}
	oct := 0
	digits := 0
	for ; i < len(pitch); i++ {
		c := pitch[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		oct = oct*10 + int(c-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		oct = -oct
	}
	n := (oct+1)*12 + semis
	if n < 0 || n > 127 {
		return 0, false
	}
	return n, true
}
