package engine

import "github.com/Carmen-Shannon/oxy-rt/common"

// Action is a queued scene edit applied at the start of the next frame.
type Action int

const (
	ActionNone Action = iota
	ActionSelectNext
	ActionToggleTexture
	ActionToggleReflection
	ActionToggleOutline
	ActionToggleShadows
	ActionToggleShadowRayType
	ActionCycleSampler
	ActionToggleBackground
	ActionRemoveSelected
	ActionTogglePause
	ActionOrbitLeft
	ActionOrbitRight
	ActionOrbitUp
	ActionOrbitDown
	ActionZoomIn
	ActionZoomOut
)

var actionNames = map[Action]string{
	ActionNone:                "none",
	ActionSelectNext:          "select next",
	ActionToggleTexture:       "toggle texture",
	ActionToggleReflection:    "toggle reflection",
	ActionToggleOutline:       "toggle outline",
	ActionToggleShadows:       "toggle shadows",
	ActionToggleShadowRayType: "toggle shadow ray type",
	ActionCycleSampler:        "cycle sampler",
	ActionToggleBackground:    "toggle background",
	ActionRemoveSelected:      "remove selected",
	ActionTogglePause:         "toggle pause",
	ActionOrbitLeft:           "orbit left",
	ActionOrbitRight:          "orbit right",
	ActionOrbitUp:             "orbit up",
	ActionOrbitDown:           "orbit down",
	ActionZoomIn:              "zoom in",
	ActionZoomOut:             "zoom out",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// DefaultKeyMap binds the viewer keys to actions.
var DefaultKeyMap = map[uint32]Action{
	common.KeyTab:    ActionSelectNext,
	common.KeyT:      ActionToggleTexture,
	common.KeyR:      ActionToggleReflection,
	common.KeyO:      ActionToggleOutline,
	common.KeyL:      ActionToggleShadows,
	common.KeyK:      ActionToggleShadowRayType,
	common.KeyP:      ActionCycleSampler,
	common.KeyB:      ActionToggleBackground,
	common.KeyDelete: ActionRemoveSelected,
	common.KeySpace:  ActionTogglePause,
	common.KeyLeft:   ActionOrbitLeft,
	common.KeyRight:  ActionOrbitRight,
	common.KeyUp:     ActionOrbitUp,
	common.KeyDown:   ActionOrbitDown,
	common.KeyEqual:  ActionZoomIn,
	common.KeyMinus:  ActionZoomOut,
}
