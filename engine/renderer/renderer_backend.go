package renderer

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based presentation backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how presented frames reach the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// FilterMode selects how the ray-traced image is scaled onto the surface.
type FilterMode int

const (
	// FilterLinear blends neighbouring texels when the window and image sizes differ.
	FilterLinear FilterMode = iota

	// FilterNearest keeps hard texel edges.
	FilterNearest
)

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}
