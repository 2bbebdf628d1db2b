package common

// Virtual key codes for the viewer's keyboard actions.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyB     = 66 // toggle background
	KeyK     = 75 // toggle shadow ray type
	KeyL     = 76 // toggle light shadows
	KeyO     = 79 // toggle outline
	KeyP     = 80 // cycle sampler
	KeyR     = 82 // toggle reflection
	KeyT     = 84 // toggle texture
	KeySpace = 32 // pause spinning

	KeyMinus = 45 // zoom out
	KeyEqual = 61 // zoom in
)

// Non-printable keys (GLFW).
const (
	KeyEsc    = 256
	KeyTab    = 258
	KeyDelete = 261
	KeyRight  = 262
	KeyLeft   = 263
	KeyDown   = 264
	KeyUp     = 265
)
