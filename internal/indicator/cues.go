package indicator

import (
	"strings"

	"github.com/rbright/voyc/internal/fsm"
)

const (
	stickyTimeoutMS = 300000
	defaultErrorMS  = 1200
	defaultErrorMsg = "Speech recognition error"
)

// cue is what one state looks like on screen. icon and color only apply to
// the Hyprland backend.
type cue struct {
	text      string
	icon      int
	color     string
	timeoutMS int
}

var stateCues = map[fsm.State]cue{
	fsm.StateListening:  {text: "Listening…", icon: 1, color: "rgb(89b4fa)", timeoutMS: stickyTimeoutMS},
	fsm.StateStopping:   {text: "Transcribing…", icon: 1, color: "rgb(cba6f7)", timeoutMS: stickyTimeoutMS},
	fsm.StateProcessing: {text: "Transcribing…", icon: 1, color: "rgb(cba6f7)", timeoutMS: stickyTimeoutMS},
	fsm.StateInjecting:  {text: "Pasting…", icon: 1, color: "rgb(a6e3a1)", timeoutMS: stickyTimeoutMS},
}

// cueFor resolves the notification for a transition. ok is false for states
// that show nothing new (starting keeps whatever is visible, idle hides).
func cueFor(tr fsm.Transition, errorTimeoutMS int) (cue, bool) {
	if tr.To == fsm.StateError {
		text := strings.TrimSpace(tr.Detail)
		if text == "" {
			text = defaultErrorMsg
		}
		if errorTimeoutMS <= 0 {
			errorTimeoutMS = defaultErrorMS
		}
		return cue{text: text, icon: 3, color: "rgb(f38ba8)", timeoutMS: errorTimeoutMS}, true
	}
	c, ok := stateCues[tr.To]
	return c, ok
}
