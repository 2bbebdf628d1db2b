package light

import "github.com/Carmen-Shannon/oxy-rt/common"

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithPosition sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = common.Vec3{x, y, z}
	}
}

// WithColors sets the ambient, diffuse and specular colors.
//
// Parameters:
//   - ambient: the ambient RGBA color
//   - diffuse: the diffuse RGBA color
//   - specular: the specular RGBA color
//
// Returns:
//   - LightBuilderOption: a function that applies the colors to a lightImpl
func WithColors(ambient, diffuse, specular [4]float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.ambient = ambient
		l.diffuse = diffuse
		l.specular = specular
	}
}

// WithSpecularPower sets the specular intensity multiplier.
//
// Parameters:
//   - power: the multiplier
//
// Returns:
//   - LightBuilderOption: a function that applies the specular power to a lightImpl
func WithSpecularPower(power float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.specularPower = power
	}
}

// WithRange sets the distance beyond which the light contributes nothing.
//
// Parameters:
//   - r: the attenuation cutoff distance
//
// Returns:
//   - LightBuilderOption: a function that applies the range to a lightImpl
func WithRange(r float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.lightRange = r
	}
}

// WithShadows sets whether hit programs trace shadow rays.
//
// Parameters:
//   - enabled: the initial shadows flag
//
// Returns:
//   - LightBuilderOption: a function that applies the flag to a lightImpl
func WithShadows(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.shadows = enabled
	}
}

// WithSoftShadows sets the shadow samples per hit and the radius of the disc they aim at.
//
// Parameters:
//   - rays: samples per hit, clamped to [1, MaxShadowRayCount]
//   - radius: jitter disc radius; 0 gives hard shadows
//
// Returns:
//   - LightBuilderOption: a function that applies the soft shadow settings to a lightImpl
func WithSoftShadows(rays uint32, radius float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.shadowRayCount = rays
		l.softRadius = radius
	}
}
