package shell

const (
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiCyan  = "\x1b[36m"
	ansiReset = "\x1b[0m"
)

// palette colors operator text when the output is a terminal
type palette struct {
	enabled bool
}

func (p palette) paint(code, text string) string {
	if !p.enabled {
		return text
	}
	return code + text + ansiReset
}

func (p palette) red(text string) string   { return p.paint(ansiRed, text) }
func (p palette) green(text string) string { return p.paint(ansiGreen, text) }
func (p palette) cyan(text string) string  { return p.paint(ansiCyan, text) }

// status colors a sensor id by calibration state
func (p palette) status(text string, calibrated bool) string {
	if calibrated {
		return p.green(text)
	}
	return p.red(text)
}
